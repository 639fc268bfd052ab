package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// cameraControllerImpl is the implementation of CameraController. The world up axis is +Y.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	yaw      float32
	pitch    float32

	minPitch float32
	maxPitch float32

	moveSpeed float32
	turnSpeed float32
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new fly controller with sensible defaults.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:        &sync.Mutex{},
		minPitch:  -float32(math.Pi/2 - 0.05),
		maxPitch:  float32(math.Pi/2 - 0.05),
		moveSpeed: 5.0,
		turnSpeed: 0.03,
	}
	for _, option := range options {
		option(cc)
	}
	cc.pitch = common.Clamp(cc.pitch, cc.minPitch, cc.maxPitch)
	return cc
}

// localAxes returns the forward and horizontal right axes. Caller must hold the mutex.
func (cc *cameraControllerImpl) localAxes() (forward, right mgl32.Vec3) {
	sy, cy := math.Sincos(float64(cc.yaw))
	sp, cp := math.Sincos(float64(cc.pitch))
	forward = mgl32.Vec3{float32(sy * cp), float32(sp), float32(-cy * cp)}
	right = mgl32.Vec3{float32(cy), 0, float32(sy)}
	return forward, right
}

func (cc *cameraControllerImpl) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) SetPosition(position mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = position
}

func (cc *cameraControllerImpl) Direction() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	forward, _ := cc.localAxes()
	return forward
}

func (cc *cameraControllerImpl) Yaw() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.yaw
}

func (cc *cameraControllerImpl) Pitch() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pitch
}

func (cc *cameraControllerImpl) MoveForward(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	forward, _ := cc.localAxes()
	cc.position = cc.position.Add(forward.Mul(delta * cc.moveSpeed))
}

func (cc *cameraControllerImpl) MoveRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, right := cc.localAxes()
	cc.position = cc.position.Add(right.Mul(delta * cc.moveSpeed))
}

func (cc *cameraControllerImpl) MoveUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position[1] += delta * cc.moveSpeed
}

func (cc *cameraControllerImpl) Turn(yaw, pitch float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.yaw += yaw * cc.turnSpeed
	if cc.yaw > math.Pi {
		cc.yaw -= 2 * math.Pi
	} else if cc.yaw < -math.Pi {
		cc.yaw += 2 * math.Pi
	}
	cc.pitch = common.Clamp(cc.pitch+pitch*cc.turnSpeed, cc.minPitch, cc.maxPitch)
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.moveSpeed
}

func (cc *cameraControllerImpl) TurnSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.turnSpeed
}
