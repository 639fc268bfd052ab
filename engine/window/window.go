package window

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the host window of the renderer: a WebGPU surface source plus the input events the
// fly camera and the renderer toggles need.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer size changes.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the function called on key presses, repeats and releases.
	//
	// Parameters:
	//   - callback: function receiving the key code and true while the key is down
	SetKeyCallback(callback func(keyCode uint32, down bool))

	// SetDragCallback sets the function called when the mouse moves with the middle button held.
	//
	// Parameters:
	//   - callback: function receiving the cursor movement in pixels since the last event
	SetDragCallback(callback func(dx, dy float32))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetTitle replaces the text of the title bar.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still open.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never opened or is already closed
	Close() error

	// PollEvents processes pending window events, running the callbacks on the calling goroutine.
	// It must be called from the goroutine that created the window.
	//
	// Returns:
	//   - bool: true while the window is open
	PollEvents() bool

	// Size returns the framebuffer size in pixels.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Size() (int, int)
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	mu *sync.Mutex

	title               string
	width, height       int
	minWidth, minHeight int
	maxWidth, maxHeight int

	// internalWindow holds the platform window (glfwWindow).
	internalWindow any

	onResize func(width, height int)
	onKey    func(keyCode uint32, down bool)
	onDrag   func(dx, dy float32)
	onScroll func(delta float32)
}

var _ Window = &engineWindow{}

// NewWindow creates and opens a window. The calling goroutine is locked to its OS thread, which
// must also run ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		mu:        &sync.Mutex{},
		title:     "oxy-deferred",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 240,
		maxWidth:  3840,
		maxHeight: 2160,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("window: failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}

func (w *engineWindow) SetKeyCallback(callback func(keyCode uint32, down bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onKey = callback
}

func (w *engineWindow) SetDragCallback(callback func(dx, dy float32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDrag = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onScroll = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
	platformSetTitle(w, title)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// callbacks returns the current callbacks so platform code can call them without holding the lock.
func (w *engineWindow) callbacks() (func(int, int), func(uint32, bool), func(float32, float32), func(float32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onResize, w.onKey, w.onDrag, w.onScroll
}
