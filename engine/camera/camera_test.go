package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, c.Direction())
	assert.Equal(t, float32(45), c.Fov())
	assert.Nil(t, c.Controller())

	c.SetDirection(mgl32.Vec3{})
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, c.Direction())
}

func TestCameraFollowsController(t *testing.T) {
	ctrl := NewCameraController(WithStart(1, 2, 3), WithLookDirection(1, 0, 0), WithMoveSpeed(2))
	c := NewCamera(WithController(ctrl))

	assert.Equal(t, mgl32.Vec3{1, 2, 3}, c.Position())
	assert.InDelta(t, 1, c.Direction().X(), 1e-5)

	ctrl.MoveForward(1)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, c.Position())
	c.Update()
	assert.InDelta(t, 3, c.Position().X(), 1e-5)
	assert.InDelta(t, 3, c.Position().Z(), 1e-5)
}

func TestControllerAxes(t *testing.T) {
	ctrl := NewCameraController(WithMoveSpeed(1))
	d := ctrl.Direction()
	assert.InDelta(t, -1, d.Z(), 1e-6)

	ctrl.MoveRight(1)
	assert.InDelta(t, 1, ctrl.Position().X(), 1e-6)
	ctrl.MoveUp(2)
	assert.InDelta(t, 2, ctrl.Position().Y(), 1e-6)
}

func TestControllerPitchIsClamped(t *testing.T) {
	ctrl := NewCameraController(WithTurnSpeed(1), WithPitchBounds(-0.5, 0.5))
	ctrl.Turn(0, 10)
	assert.Equal(t, float32(0.5), ctrl.Pitch())
	ctrl.Turn(0, -10)
	assert.Equal(t, float32(-0.5), ctrl.Pitch())
	ctrl.Turn(4, 0)
	assert.InDelta(t, 4-2*3.14159265, ctrl.Yaw(), 1e-5)
}

func TestViewProjectionCentersTarget(t *testing.T) {
	c := NewCamera(WithPosition(0, 0, 5))
	vp := c.ViewProjection(1, mgl32.Vec3{0, 1, 0})
	p := vp.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, p.X()/p.W(), 1e-5)
	assert.InDelta(t, 0, p.Y()/p.W(), 1e-5)
	z := p.Z() / p.W()
	assert.True(t, z > 0 && z < 1)
}
