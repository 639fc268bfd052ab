package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*cameraImpl)

// WithPosition sets the camera's initial position.
//
// Parameters:
//   - x, y, z: position components
//
// Returns:
//   - CameraBuilderOption: option function
func WithPosition(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection sets the camera's initial viewing direction. Zero vectors are ignored.
//
// Parameters:
//   - x, y, z: direction components (need not be normalized)
//
// Returns:
//   - CameraBuilderOption: option function
func WithDirection(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		d := mgl32.Vec3{x, y, z}
		if d.Len() > 0 {
			c.direction = d.Normalize()
		}
	}
}

// WithFov sets the vertical field of view.
//
// Parameters:
//   - fov: field of view in degrees
//
// Returns:
//   - CameraBuilderOption: option function
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: option function
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: option function
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithController attaches a camera controller at construction time.
//
// Parameters:
//   - ctrl: the camera controller to attach
//
// Returns:
//   - CameraBuilderOption: option function
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
