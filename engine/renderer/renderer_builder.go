package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithShadows sets whether spot lights flagged as shadow casters render a shadow map.
// Defaults to true.
//
// Parameters:
//   - enabled: true to render spot light shadows
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadows option to a renderer
func WithShadows(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.shadows = enabled
	}
}

// WithSSR sets whether the screen-space reflection post-process runs. Defaults to true.
//
// Parameters:
//   - enabled: true to run the reflection pass
//
// Returns:
//   - RendererBuilderOption: a function that applies the SSR option to a renderer
func WithSSR(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.ssrEnabled = enabled
	}
}

// WithSMAA sets whether the SMAA post-process runs. When disabled the final colour is blitted to
// the display. Defaults to true.
//
// Parameters:
//   - enabled: true to run the antialiasing passes
//
// Returns:
//   - RendererBuilderOption: a function that applies the SMAA option to a renderer
func WithSMAA(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.smaaEnabled = enabled
	}
}

// WithShadowResolution sets the edge length of the square shadow map. Defaults to 2048.
//
// Parameters:
//   - resolution: the edge length in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the resolution to a renderer
func WithShadowResolution(resolution int) RendererBuilderOption {
	return func(r *renderer) {
		if resolution > 0 {
			r.shadowResolution = resolution
		}
	}
}

// WithReflectiveMesh designates the mesh rendered with the reflective material and the id the
// reflective material is registered under. Defaults to mesh 311 and material 100.
//
// Parameters:
//   - meshID: the scene mesh whose instances are reflective
//   - materialID: the material id reserved for the reflective material
//
// Returns:
//   - RendererBuilderOption: a function that applies the reflective mesh to a renderer
func WithReflectiveMesh(meshID, materialID uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.reflectiveMeshID = meshID
		r.reflectiveMaterialID = materialID
	}
}

// WithWorkerCount sets how many workers prepare per-frame instance data. Defaults to the number of CPUs.
//
// Parameters:
//   - workers: the worker count, at least 1
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker count to a renderer
func WithWorkerCount(workers int) RendererBuilderOption {
	return func(r *renderer) {
		r.workers = max(workers, 1)
	}
}

// WithLightCulling sets whether lights whose volume lies outside the camera frustum are skipped.
// Defaults to false.
//
// Parameters:
//   - enabled: true to cull lights against the frustum
//
// Returns:
//   - RendererBuilderOption: a function that applies the culling option to a renderer
func WithLightCulling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.lightCulling = enabled
	}
}

// WithProfiler times every pass of the frame and ticks p once per presented frame.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - RendererBuilderOption: a function that applies the profiler to a renderer
func WithProfiler(p profiler.Profiler) RendererBuilderOption {
	return func(r *renderer) {
		r.profiler = p
	}
}

// WithSourceLoader sets where shader sources are read from. Defaults to the embedded shaders.
//
// Parameters:
//   - loader: the shader source loader
//
// Returns:
//   - RendererBuilderOption: a function that applies the loader to a renderer
func WithSourceLoader(loader program.SourceLoader) RendererBuilderOption {
	return func(r *renderer) {
		r.loader = loader
	}
}
