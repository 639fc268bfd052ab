package backend

// backendConfig collects construction options shared by every backend type.
type backendConfig struct {
	presentMode          PresentMode
	forceFallbackAdapter bool
	clearValues          ClearValues
	width, height        int
}

// BackendBuilderOption is a functional option applied to a backend during construction via NewBackend.
type BackendBuilderOption func(*backendConfig)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - BackendBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(c *backendConfig) {
		c.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - BackendBuilderOption: a function that applies the force software renderer option
func WithForceSoftwareRenderer(force bool) BackendBuilderOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithClearValues overrides the values Clear writes.
//
// Parameters:
//   - values: the clear values
//
// Returns:
//   - BackendBuilderOption: a function that applies the clear values
func WithClearValues(values ClearValues) BackendBuilderOption {
	return func(c *backendConfig) {
		c.clearValues = values
	}
}

// WithSurfaceSize sets the initial surface size. The WebGPU backend configures its surface with it;
// the recording backend reports it from SurfaceSize.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - BackendBuilderOption: a function that applies the surface size
func WithSurfaceSize(width, height int) BackendBuilderOption {
	return func(c *backendConfig) {
		c.width = width
		c.height = height
	}
}
