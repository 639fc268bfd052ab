package scene

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithCamera sets the scene's camera.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}

// WithAmbientIntensity sets the ambient light intensity.
//
// Parameters:
//   - r, g, b: the ambient intensity per channel
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientIntensity(r, g, b float32) SceneBuilderOption {
	return func(s *scene) {
		s.ambient = mgl32.Vec3{r, g, b}
	}
}

// WithUpDirection sets the scene's up direction.
//
// Parameters:
//   - x, y, z: the up direction, normalized before storing
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpDirection(x, y, z float32) SceneBuilderOption {
	return func(s *scene) {
		up := mgl32.Vec3{x, y, z}
		if up.Len() > 0 {
			s.up = up.Normalize()
		}
	}
}

// WithMaterials adds initial materials.
//
// Parameters:
//   - materials: the materials to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaterials(materials ...Material) SceneBuilderOption {
	return func(s *scene) {
		for _, m := range materials {
			s.addMaterial(m)
		}
	}
}

// WithMeshes adds initial meshes.
//
// Parameters:
//   - meshes: the meshes to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMeshes(meshes ...Mesh) SceneBuilderOption {
	return func(s *scene) {
		for _, m := range meshes {
			s.addMesh(m)
		}
	}
}

// WithInstances adds initial mesh instances.
//
// Parameters:
//   - instances: the instances to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithInstances(instances ...Instance) SceneBuilderOption {
	return func(s *scene) {
		for _, inst := range instances {
			s.instances[inst.MeshID] = append(s.instances[inst.MeshID], inst)
		}
	}
}

// WithLights adds initial lights.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		for _, l := range lights {
			s.addLight(l)
		}
	}
}
