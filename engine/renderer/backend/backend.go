package backend

import (
	"errors"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the GPU backend implementation.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeRecording selects the headless backend that records every call without a GPU.
	BackendTypeRecording
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// ClearFlags selects which aspects of the bound framebuffer Clear resets.
type ClearFlags uint8

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil
	// ClearTransparent clears colour to transparent black instead of the configured colour, for
	// intermediate targets whose channels carry data rather than pixels.
	ClearTransparent
)

// ClearValues are the values Clear writes.
type ClearValues struct {
	Color   wgpu.Color
	Depth   float32
	Stencil uint32
}

// DefaultClearValues clears colour to a dark blue, depth to the far plane and stencil to the
// "no geometry" mark the light passes test against.
var DefaultClearValues = ClearValues{
	Color:   wgpu.Color{R: 0, G: 0, B: 0.25, A: 0},
	Depth:   1,
	Stencil: 0x80,
}

// ErrSurfaceLost is returned by BeginFrame when the surface texture cannot be acquired.
var ErrSurfaceLost = errors.New("backend: surface texture unavailable")

var resourceIDs atomic.Uint64

// nextID returns a process-unique resource identifier. Zero is never returned.
func nextID() uint64 {
	return resourceIDs.Add(1)
}

// Backend is the GPU abstraction the deferred renderer is written against. It mirrors the small
// immediate-mode surface the renderer needs: resource creation, uploads, binding and draws, with
// fixed-function state supplied as a pipeline.PassState. Binding calls are lazy; nothing reaches
// the GPU until a draw, blit, mipmap generation or frame end needs it.
type Backend interface {
	// Type returns the backend implementation type.
	//
	// Returns:
	//   - BackendType: the backend type
	Type() BackendType

	// CreateTexture allocates a 2D texture together with its sampler.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the texture handle
	//   - error: an error if the texture could not be created
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateBuffer allocates a GPU buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - Buffer: the buffer handle
	//   - error: an error if the buffer could not be created
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateFramebuffer groups textures into a render target. Every attachment must share one size,
	// otherwise the framebuffer is incomplete and an error is returned.
	//
	// Parameters:
	//   - desc: the framebuffer descriptor
	//
	// Returns:
	//   - Framebuffer: the framebuffer handle
	//   - error: an error if the framebuffer is incomplete
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)

	// CreateVertexArray binds vertex, instance, element and indirect buffers into one drawable unit.
	//
	// Parameters:
	//   - desc: the vertex array descriptor
	//
	// Returns:
	//   - VertexArray: the vertex array handle
	//   - error: an error if a required buffer is missing
	CreateVertexArray(desc VertexArrayDescriptor) (VertexArray, error)

	// CreateProgram compiles a vertex and optional fragment shader into a program.
	//
	// Parameters:
	//   - desc: the program descriptor
	//
	// Returns:
	//   - Program: the program handle
	//   - error: an error if compilation or layout creation fails
	CreateProgram(desc ProgramDescriptor) (Program, error)

	// WriteBuffer uploads data into a buffer. Uploads are ordered with respect to draws recorded
	// before and after them within a frame.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset into the buffer
	//   - data: the bytes to write
	WriteBuffer(buf Buffer, offset uint64, data []byte)

	// WriteTexture uploads pixels into mip level 0 of a texture.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - data: the pixel data and its dimensions
	WriteTexture(tex Texture, data common.TextureStagingData)

	// BeginFrame starts recording a frame and acquires the display surface.
	//
	// Returns:
	//   - error: ErrSurfaceLost (wrapped) if the surface texture could not be acquired
	BeginFrame() error

	// EndFrame flushes pending clears, submits the frame and presents the surface.
	//
	// Returns:
	//   - error: an error if the frame could not be submitted
	EndFrame() error

	// BindFramebuffer selects the render target of subsequent clears and draws. Nil selects the
	// display surface.
	//
	// Parameters:
	//   - fb: the framebuffer, or nil for the display surface
	BindFramebuffer(fb Framebuffer)

	// SetViewport sets the viewport rectangle of subsequent draws, clamped to the bound target.
	//
	// Parameters:
	//   - x, y: the top left corner in pixels
	//   - width, height: the size in pixels
	SetViewport(x, y, width, height int)

	// Clear resets the selected aspects of the bound target to the backend's clear values.
	//
	// Parameters:
	//   - flags: the aspects to clear
	Clear(flags ClearFlags)

	// ApplyPassState sets the fixed-function state of subsequent draws.
	//
	// Parameters:
	//   - state: the pass state
	ApplyPassState(state pipeline.PassState)

	// UseProgram sets the program of subsequent draws. Nil clears the binding.
	//
	// Parameters:
	//   - p: the program
	UseProgram(p Program)

	// BindUniformBuffer attaches a uniform buffer to a uniform block slot.
	//
	// Parameters:
	//   - slot: the uniform block slot
	//   - buf: the buffer
	BindUniformBuffer(slot int, buf Buffer)

	// BindTexture attaches a texture to a texture unit. Nil unbinds the unit.
	//
	// Parameters:
	//   - unit: the texture unit
	//   - tex: the texture, or nil
	BindTexture(unit int, tex Texture)

	// BindVertexArray sets the vertex array of subsequent draws.
	//
	// Parameters:
	//   - va: the vertex array
	BindVertexArray(va VertexArray)

	// DrawIndexedIndirect issues commandCount indexed draws whose arguments are read from the bound
	// vertex array's indirect buffer, 20 bytes per command.
	//
	// Parameters:
	//   - commandCount: the number of draw commands
	DrawIndexedIndirect(commandCount int)

	// BlitFramebuffer copies the first colour attachment of src into the first colour attachment
	// of dst, or onto the display surface when dst is nil.
	//
	// Parameters:
	//   - src: the source framebuffer
	//   - dst: the destination framebuffer, or nil for the display surface
	BlitFramebuffer(src Framebuffer, dst Framebuffer)

	// GenerateMipmaps fills mip levels 1..n-1 of a texture from level 0.
	//
	// Parameters:
	//   - tex: the texture
	GenerateMipmaps(tex Texture)

	// ConfigureSurface (re)configures the display surface for a new size.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	ConfigureSurface(width, height int)

	// SurfaceSize returns the configured size of the display surface.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	SurfaceSize() (int, int)

	// Release releases every backend-owned object. Resources created through the backend are
	// owned by their creators and must be released by them first.
	Release()
}

// NewBackend is the entry point to create a Backend of the given type.
//
// Parameters:
//   - backendType: the backend implementation to create
//   - surfaceDescriptor: the native surface for the WebGPU backend, ignored by the recording backend
//   - opts: a variadic list of BackendBuilderOption functions
//
// Returns:
//   - Backend: the backend
func NewBackend(backendType BackendType, surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...BackendBuilderOption) Backend {
	cfg := &backendConfig{
		presentMode: PresentModeVSync,
		clearValues: DefaultClearValues,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch backendType {
	case BackendTypeRecording:
		return newRecordingBackend(cfg)
	default:
		return newWGPUBackend(surfaceDescriptor, cfg)
	}
}
