package engine

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Camera input scaling.
const (
	// movement and turn steps are tuned per 60 Hz tick
	stepsPerSecond = 60
	sprintFactor   = 3
	dragSteps      = 0.2 // turn steps per dragged pixel
	zoomDegrees    = 2   // field of view change per scroll notch
	minFov         = 20
	maxFov         = 90
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	mu  *sync.Mutex
	log *zap.Logger

	tickRateChannel chan time.Duration // dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // quitChannel is closed once

	window   window.Window
	renderer renderer.Renderer

	engineTickRate   time.Duration
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	tickCallback     func(deltaTime float32)

	held map[uint32]bool
	drag [2]float32
	zoom float32
}

// Engine hosts a renderer: it sets it up for the window, renders on its own goroutine, moves the
// scene camera from keyboard and mouse input on a fixed tick, and maps the function keys to the
// renderer toggles (F1 shadows, F2 reflections, F3 antialiasing, F5 shader recompile).
type Engine interface {
	// Window returns the host window, nil if none was configured.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the hosted renderer.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// SetTickRate sets the engine tick rate in ticks per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick after the camera update.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run sets up the renderer, starts the tick and render loops and processes window events on
	// the calling goroutine until the window closes or Quit is called. The renderer is torn down
	// and the window closed before Run returns.
	//
	// Returns:
	//   - error: setup, teardown and close errors, combined
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates an Engine hosting r.
//
// Parameters:
//   - r: the renderer to host
//   - options: functional options for engine configuration (window, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.Mutex{},
		log:             logger.Named("engine"),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		engineTickRate:  time.Second / 60,
		held:            make(map[uint32]bool),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetKeyCallback(e.handleKey)
		e.window.SetDragCallback(e.handleDrag)
		e.window.SetScrollCallback(e.handleScroll)
		e.window.SetResizeCallback(e.handleResize)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() error {
	if e.window == nil {
		return errors.New("engine: no window to run in")
	}

	width, height := e.window.Size()
	if err := e.renderer.Setup(width, height); err != nil {
		return multierr.Append(fmt.Errorf("engine: failed to set up renderer: %w", err), e.window.Close())
	}
	e.updateTitle()

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	e.handle()

	// window events must be processed on the thread that created the window
	for e.window.PollEvents() && !e.quitting() {
		runtime.Gosched()
	}
	e.signalQuit()
	e.wg.Wait()

	err := e.renderer.Teardown()
	return multierr.Append(err, e.window.Close())
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop: camera input, then the tick callback. Listens for
// dynamic rate changes via tickRateChannel and exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.updateCamera(dt)
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender renders frames until quit. A lost surface skips the frame; any other render
// error or a panic stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("render goroutine recovered from panic", zap.Any("panic", r))
			e.signalQuit()
		}
	}()

	for !e.quitting() {
		start := time.Now()
		if err := e.renderer.Render(); err != nil {
			if !errors.Is(err, backend.ErrSurfaceLost) {
				e.log.Error("render failed", zap.Error(err))
				e.signalQuit()
				return
			}
			e.log.Warn("frame skipped", zap.Error(err))
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// handleKey records held keys for camera movement and runs the toggles on the press edge, so key
// repeats do not toggle again.
func (e *engine) handleKey(keyCode uint32, down bool) {
	e.mu.Lock()
	wasDown := e.held[keyCode]
	e.held[keyCode] = down
	e.mu.Unlock()
	if !down || wasDown {
		return
	}

	switch keyCode {
	case common.KeyF1:
		e.log.Info("shadows toggled", zap.Bool("enabled", e.renderer.ToggleShadows()))
	case common.KeyF2:
		e.log.Info("reflections toggled", zap.Bool("enabled", e.renderer.ToggleSSR()))
	case common.KeyF3:
		e.log.Info("antialiasing toggled", zap.Bool("enabled", e.renderer.ToggleSMAA()))
	case common.KeyF5:
		if err := e.renderer.RecompileShaders(); err != nil {
			e.log.Warn("shader recompile failed", zap.Error(err))
			return
		}
	default:
		return
	}
	e.updateTitle()
}

func (e *engine) handleDrag(dx, dy float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag[0] += dx
	e.drag[1] += dy
}

func (e *engine) handleScroll(delta float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom += delta
}

func (e *engine) handleResize(width, height int) {
	if err := e.renderer.Resize(width, height); err != nil && !errors.Is(err, renderer.ErrNotSetUp) {
		e.log.Error("resize failed", zap.Error(err), zap.Int("width", width), zap.Int("height", height))
	}
}

// axis returns +1, -1 or 0 from a pair of held keys.
func (e *engine) axis(positive, negative uint32) float32 {
	var v float32
	if e.held[positive] {
		v++
	}
	if e.held[negative] {
		v--
	}
	return v
}

// updateCamera applies held movement keys, accumulated drags and scrolls to the scene camera.
func (e *engine) updateCamera(dt float32) {
	cam := e.renderer.Scene().Camera()
	if cam == nil {
		return
	}

	e.mu.Lock()
	forward := e.axis(common.KeyW, common.KeyS)
	right := e.axis(common.KeyD, common.KeyA)
	up := e.axis(common.KeyE, common.KeyQ) + e.axis(common.KeySpace, 0)
	sprint := e.held[common.KeyLeftShift] || e.held[common.KeyRightShift]
	drag, zoom := e.drag, e.zoom
	e.drag, e.zoom = [2]float32{}, 0
	e.mu.Unlock()

	if zoom != 0 {
		cam.SetFov(common.Clamp(cam.Fov()-zoom*zoomDegrees, minFov, maxFov))
	}

	ctrl := cam.Controller()
	if ctrl == nil {
		return
	}
	steps := dt * stepsPerSecond
	if sprint {
		steps *= sprintFactor
	}
	if forward != 0 {
		ctrl.MoveForward(forward * steps)
	}
	if right != 0 {
		ctrl.MoveRight(right * steps)
	}
	if up != 0 {
		ctrl.MoveUp(up * steps)
	}
	if drag != [2]float32{} {
		// dragging down looks down
		ctrl.Turn(drag[0]*dragSteps, -drag[1]*dragSteps)
	}
	cam.Update()
}

// updateTitle shows the toggle states in the window title.
func (e *engine) updateTitle() {
	if e.window == nil {
		return
	}
	e.window.SetTitle(title(e.renderer))
}

func title(r renderer.Renderer) string {
	onOff := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}
	return fmt.Sprintf("%s | F1 shadows %s | F2 ssr %s | F3 smaa %s",
		r.Scene().Name(), onOff(r.ShadowsEnabled()), onOff(r.SSREnabled()), onOff(r.SMAAEnabled()))
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		e.engineTickRate = newRate
		return
	}

	// non-blocking send; a pending update is replaced
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
