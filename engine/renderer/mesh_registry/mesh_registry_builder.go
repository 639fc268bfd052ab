package mesh_registry

// MeshRegistryBuilderOption is a functional option applied to a registry during construction via NewMeshRegistry.
type MeshRegistryBuilderOption func(*meshRegistry)

// WithSphereSubdivisions sets the latitude bands of the point light sphere. Defaults to 12.
//
// Parameters:
//   - rings: latitude bands, at least 3
//
// Returns:
//   - MeshRegistryBuilderOption: a function that applies the option
func WithSphereSubdivisions(rings int) MeshRegistryBuilderOption {
	return func(r *meshRegistry) {
		r.sphereRings = max(rings, 3)
	}
}

// WithConeSubdivisions sets the sides per quarter turn of the spot light cone. Defaults to 5.
//
// Parameters:
//   - subdivisions: sides per quarter turn, at least 1
//
// Returns:
//   - MeshRegistryBuilderOption: a function that applies the option
func WithConeSubdivisions(subdivisions int) MeshRegistryBuilderOption {
	return func(r *meshRegistry) {
		r.coneSubdivisions = max(subdivisions, 1)
	}
}
