package program

// ManagerBuilderOption is a functional option applied to a manager during construction via NewManager.
type ManagerBuilderOption func(*manager)

// WithSourceLoader sets where WGSL sources are read from. Defaults to EmbeddedLoader.
//
// Parameters:
//   - loader: the source loader
//
// Returns:
//   - ManagerBuilderOption: a function that applies the option
func WithSourceLoader(loader SourceLoader) ManagerBuilderOption {
	return func(m *manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}
