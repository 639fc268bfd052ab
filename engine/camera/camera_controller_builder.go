package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithStart sets the initial position of the controller.
//
// Parameters:
//   - x, y, z: world-space position
//
// Returns:
//   - CameraControllerOption: option function
func WithStart(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.position = mgl32.Vec3{x, y, z}
	}
}

// WithLookDirection sets the initial yaw and pitch from a viewing direction. Zero vectors are ignored.
//
// Parameters:
//   - x, y, z: the viewing direction (need not be normalized)
//
// Returns:
//   - CameraControllerOption: option function
func WithLookDirection(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		d := mgl32.Vec3{x, y, z}
		if d.Len() == 0 {
			return
		}
		d = d.Normalize()
		cc.yaw = float32(math.Atan2(float64(d.X()), float64(-d.Z())))
		cc.pitch = float32(math.Asin(float64(d.Y())))
	}
}

// WithPitchBounds sets the minimum and maximum pitch in radians.
//
// Parameters:
//   - min: minimum pitch
//   - max: maximum pitch
//
// Returns:
//   - CameraControllerOption: option function
func WithPitchBounds(min, max float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minPitch = min
		cc.maxPitch = max
	}
}

// WithMoveSpeed sets the distance covered by one move step.
//
// Parameters:
//   - speed: distance per step
//
// Returns:
//   - CameraControllerOption: option function
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.moveSpeed = speed
	}
}

// WithTurnSpeed sets the angle covered by one turn step.
//
// Parameters:
//   - speed: radians per step
//
// Returns:
//   - CameraControllerOption: option function
func WithTurnSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.turnSpeed = speed
	}
}
