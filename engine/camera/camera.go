package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	position  mgl32.Vec3
	direction mgl32.Vec3

	fov  float32 // vertical, degrees
	near float32
	far  float32

	controller CameraController
}

// Camera defines the interface for the scene camera.
// The camera holds a position, a viewing direction and perspective settings. When a
// CameraController is attached, Update copies the controller's position and direction.
// The aspect ratio belongs to the render target and is supplied by the renderer.
type Camera interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Direction returns the normalized viewing direction.
	//
	// Returns:
	//   - mgl32.Vec3: the viewing direction
	Direction() mgl32.Vec3

	// Fov returns the vertical field of view in degrees.
	//
	// Returns:
	//   - float32: field of view in degrees
	Fov() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// SetPosition sets the camera's world-space position.
	//
	// Parameters:
	//   - position: the eye position
	SetPosition(position mgl32.Vec3)

	// SetDirection sets the viewing direction. Zero vectors are ignored.
	//
	// Parameters:
	//   - direction: the viewing direction (need not be normalized)
	SetDirection(direction mgl32.Vec3)

	// SetFov sets the vertical field of view.
	//
	// Parameters:
	//   - fov: field of view in degrees
	SetFov(fov float32)

	// SetNear sets the near clipping plane distance.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// ViewProjection returns projection * view for the given aspect ratio and up direction.
	//
	// Parameters:
	//   - aspect: the render target's width / height
	//   - up: the scene's up direction
	//
	// Returns:
	//   - mgl32.Mat4: the view-projection matrix
	ViewProjection(aspect float32, up mgl32.Vec3) mgl32.Mat4

	// Controller returns the attached controller, or nil.
	Controller() CameraController

	// SetController attaches a controller. Pass nil to detach.
	SetController(ctrl CameraController)

	// Update copies position and direction from the attached controller. No-op without one.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new camera at the origin looking down -Z with a 45 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:        &sync.Mutex{},
		position:  mgl32.Vec3{0, 0, 0},
		direction: mgl32.Vec3{0, 0, -1},
		fov:       45.0,
		near:      0.1,
		far:       1000.0,
	}
	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.pull()
	}
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Direction() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) SetPosition(position mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
}

func (c *cameraImpl) SetDirection(direction mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if direction.Len() == 0 {
		return
	}
	c.direction = direction.Normalize()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
}

func (c *cameraImpl) ViewProjection(aspect float32, up mgl32.Vec3) mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ViewProjection(c.position, c.direction, up, c.fov, aspect, c.near, c.far)
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pull()
}

// pull copies the controller state. Caller must hold the mutex.
func (c *cameraImpl) pull() {
	if c.controller == nil {
		return
	}
	c.position = c.controller.Position()
	c.direction = c.controller.Direction()
}
