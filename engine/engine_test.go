package engine

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWindow stays open for a fixed number of polls.
type stubWindow struct {
	mu     sync.Mutex
	polls  int
	title  string
	closed bool

	onKey    func(uint32, bool)
	onDrag   func(float32, float32)
	onScroll func(float32)
	onResize func(int, int)
}

func (w *stubWindow) SetResizeCallback(cb func(width, height int))      { w.onResize = cb }
func (w *stubWindow) SetKeyCallback(cb func(keyCode uint32, down bool)) { w.onKey = cb }
func (w *stubWindow) SetDragCallback(cb func(dx, dy float32))           { w.onDrag = cb }
func (w *stubWindow) SetScrollCallback(cb func(delta float32))          { w.onScroll = cb }
func (w *stubWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor        { return nil }
func (w *stubWindow) Size() (int, int)                                  { return 160, 120 }

func (w *stubWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
}

func (w *stubWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

func (w *stubWindow) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.polls > 0
}

func (w *stubWindow) PollEvents() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.polls--
	return !w.closed && w.polls > 0
}

func (w *stubWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func testScene() scene.Scene {
	ctrl := camera.NewCameraController(camera.WithStart(0, 0, 0), camera.WithMoveSpeed(1))
	return scene.NewScene(
		scene.WithName("test"),
		scene.WithCamera(camera.NewCamera(camera.WithController(ctrl), camera.WithFov(60))),
		scene.WithMaterials(scene.Material{ID: 1}),
		scene.WithMeshes(scene.Box(1, mgl32.Vec3{1, 1, 1})),
		scene.WithInstances(scene.Instance{MeshID: 1, MaterialID: 1, Transform: mgl32.Ident4()}),
	)
}

func newTestEngine(polls int) (*engine, *stubWindow, backend.Recorder) {
	rec := backend.NewRecordingBackend(160, 120)
	r := renderer.NewRenderer(rec, testScene(), renderer.WithWorkerCount(1), renderer.WithShadowResolution(64))
	w := &stubWindow{polls: polls}
	return NewEngine(r, WithWindow(w)).(*engine), w, rec
}

func TestFunctionKeysToggleOnPress(t *testing.T) {
	e, w, _ := newTestEngine(1)
	r := e.Renderer()

	w.onKey(common.KeyF1, true)
	assert.False(t, r.ShadowsEnabled())
	// repeats do not toggle again
	w.onKey(common.KeyF1, true)
	assert.False(t, r.ShadowsEnabled())
	w.onKey(common.KeyF1, false)
	w.onKey(common.KeyF1, true)
	assert.True(t, r.ShadowsEnabled())

	w.onKey(common.KeyF2, true)
	w.onKey(common.KeyF3, true)
	assert.False(t, r.SSREnabled())
	assert.False(t, r.SMAAEnabled())
	assert.Equal(t, "test | F1 shadows on | F2 ssr off | F3 smaa off", w.Title())
}

func TestRecompileBeforeSetupKeepsTitle(t *testing.T) {
	e, w, rec := newTestEngine(1)
	w.onKey(common.KeyF5, true)
	assert.Empty(t, w.Title())
	assert.Zero(t, rec.Count(backend.OpCreateProgram))
	assert.NotNil(t, e)
}

func TestCameraFollowsHeldKeys(t *testing.T) {
	e, w, _ := newTestEngine(1)
	cam := e.Renderer().Scene().Camera()

	w.onKey(common.KeyW, true)
	e.updateCamera(1.0 / 60)
	assert.InDelta(t, -1, cam.Position().Z(), 1e-4)

	w.onKey(common.KeyW, false)
	w.onKey(common.KeyD, true)
	w.onKey(common.KeyLeftShift, true)
	e.updateCamera(1.0 / 60)
	assert.InDelta(t, 3, cam.Position().X(), 1e-4)
	assert.InDelta(t, -1, cam.Position().Z(), 1e-4)
}

func TestScrollZoomsWithinBounds(t *testing.T) {
	e, w, _ := newTestEngine(1)
	cam := e.Renderer().Scene().Camera()

	w.onScroll(5)
	e.updateCamera(0)
	assert.InDelta(t, 50, cam.Fov(), 1e-4)

	w.onScroll(100)
	e.updateCamera(0)
	assert.InDelta(t, minFov, cam.Fov(), 1e-4)

	// consumed
	e.updateCamera(0)
	assert.InDelta(t, minFov, cam.Fov(), 1e-4)
}

func TestDragTurnsCamera(t *testing.T) {
	e, w, _ := newTestEngine(1)
	cam := e.Renderer().Scene().Camera()
	before := cam.Direction()

	w.onDrag(10, 0)
	e.updateCamera(0)
	assert.NotEqual(t, before, cam.Direction())
}

func TestRunSetsUpRendersAndTearsDown(t *testing.T) {
	e, w, rec := newTestEngine(50)
	e.SetRenderFrameLimit(1000)

	require.NoError(t, e.Run())
	assert.True(t, w.closed)
	assert.Zero(t, rec.Live())
	assert.Equal(t, "test | F1 shadows on | F2 ssr on | F3 smaa on", w.Title())
	assert.Equal(t, rec.Count(backend.OpBeginFrame), rec.Count(backend.OpEndFrame))
}

func TestRunWithoutWindowFails(t *testing.T) {
	rec := backend.NewRecordingBackend(1, 1)
	e := NewEngine(renderer.NewRenderer(rec, testScene()))
	assert.Error(t, e.Run())
	assert.Nil(t, e.Window())
}

func TestQuitIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(1)
	e.Quit()
	e.Quit()
	assert.True(t, e.quitting())
}

func TestResizeBeforeSetupIsIgnored(t *testing.T) {
	_, w, rec := newTestEngine(1)
	w.onResize(640, 480)
	assert.Zero(t, rec.Count(backend.OpConfigureSurface))
}
