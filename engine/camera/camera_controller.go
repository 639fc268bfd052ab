package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController defines a first-person fly controller. Controllers own positional state
// (position, yaw, pitch); the Camera reads from the controller on Update.
type CameraController interface {
	// Position returns the controller's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// SetPosition sets the world-space position directly.
	//
	// Parameters:
	//   - position: the eye position
	SetPosition(position mgl32.Vec3)

	// Direction returns the normalized viewing direction derived from yaw and pitch.
	//
	// Returns:
	//   - mgl32.Vec3: the viewing direction
	Direction() mgl32.Vec3

	// Yaw returns the heading in radians around the up axis. Zero looks down -Z.
	Yaw() float32

	// Pitch returns the elevation in radians above the horizontal plane.
	Pitch() float32

	// MoveForward translates along the viewing direction.
	//
	// Parameters:
	//   - delta: distance in move speed steps, negative moves backwards
	MoveForward(delta float32)

	// MoveRight translates along the horizontal right axis.
	//
	// Parameters:
	//   - delta: distance in move speed steps, negative moves left
	MoveRight(delta float32)

	// MoveUp translates along the world up axis.
	//
	// Parameters:
	//   - delta: distance in move speed steps, negative moves down
	MoveUp(delta float32)

	// Turn rotates the view. Pitch is clamped to the configured bounds.
	//
	// Parameters:
	//   - yaw: heading change in turn speed steps, positive turns right
	//   - pitch: elevation change in turn speed steps, positive looks up
	Turn(yaw, pitch float32)

	// MoveSpeed returns the distance covered by one move step.
	MoveSpeed() float32

	// TurnSpeed returns the angle in radians covered by one turn step.
	TurnSpeed() float32
}
