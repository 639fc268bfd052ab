package material

// TableBuilderOption is a function that configures a material table during construction.
type TableBuilderOption func(*table)

// WithReflectiveID is an option builder that sets the material id reserved for the reflective
// material. Defaults to DefaultReflectiveID.
//
// Parameters:
//   - id: the reflective material id
//
// Returns:
//   - TableBuilderOption: a function that applies the reflective id option to a table
func WithReflectiveID(id uint32) TableBuilderOption {
	return func(t *table) {
		t.reflectiveID = id
	}
}
