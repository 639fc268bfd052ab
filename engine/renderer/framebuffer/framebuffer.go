package framebuffer

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Attachment formats of the deferred targets.
const (
	PositionFormat     = wgpu.TextureFormatRGBA16Float
	NormalFormat       = wgpu.TextureFormatRGBA16Float
	MaterialFormat     = wgpu.TextureFormatR8Uint
	DepthStencilFormat = wgpu.TextureFormatDepth24PlusStencil8
	ColorFormat        = wgpu.TextureFormatRGBA8Unorm
	ShadowFormat       = wgpu.TextureFormatDepth32Float
)

// DefaultShadowResolution is the edge length of the shadow map.
const DefaultShadowResolution = 2048

// MipLevels returns the length of the full mip chain of a width x height texture.
//
// Parameters:
//   - width, height: the size in pixels
//
// Returns:
//   - int: the number of mip levels, at least 1
func MipLevels(width, height int) int {
	return bits.Len(uint(max(width, height, 1)))
}

// gBuffer is the implementation of the GBuffer interface.
type gBuffer struct {
	mu      *sync.Mutex
	backend backend.Backend

	width, height int
	position      backend.Texture
	normal        backend.Texture
	material      backend.Texture
	depthStencil  backend.Texture
	framebuffer   backend.Framebuffer
}

// GBuffer is the geometry buffer: world position, world normal and material index per pixel,
// plus the depth/stencil surface the light passes test against.
type GBuffer interface {
	// Framebuffer returns the render target of the geometry pass.
	Framebuffer() backend.Framebuffer

	// Position returns the RGBA16Float world position texture.
	Position() backend.Texture

	// Normal returns the RGBA16Float world normal texture.
	Normal() backend.Texture

	// Material returns the R8Uint material index texture.
	Material() backend.Texture

	// DepthStencil returns the Depth24PlusStencil8 surface shared with the light buffer.
	DepthStencil() backend.Texture

	// Size returns the width and height in pixels.
	Size() (int, int)

	// Resize reallocates every attachment when the size changed. Framebuffers referencing the old
	// depth/stencil surface must be rebuilt afterwards.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - bool: true if the attachments were reallocated
	//   - error: error if an attachment could not be created
	Resize(width, height int) (bool, error)

	// Release releases every attachment and the framebuffer. Safe to call twice.
	Release()
}

var _ GBuffer = &gBuffer{}

// NewGBuffer creates the geometry buffer.
//
// Parameters:
//   - b: the backend to create the attachments on
//   - width, height: the size in pixels
//
// Returns:
//   - GBuffer: the geometry buffer
//   - error: error if an attachment could not be created
func NewGBuffer(b backend.Backend, width, height int) (GBuffer, error) {
	g := &gBuffer{mu: &sync.Mutex{}, backend: b}
	if err := g.allocate(width, height); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *gBuffer) allocate(width, height int) error {
	var err error
	create := func(label string, format wgpu.TextureFormat, sampler common.SamplerStagingData) backend.Texture {
		if err != nil {
			return nil
		}
		var tex backend.Texture
		tex, err = g.backend.CreateTexture(backend.TextureDescriptor{
			Label: label, Width: width, Height: height, Format: format, Sampler: sampler,
		})
		return tex
	}
	g.position = create("gbuffer_position", PositionFormat, common.NearestClamp)
	g.normal = create("gbuffer_normal", NormalFormat, common.NearestClamp)
	g.material = create("gbuffer_material", MaterialFormat, common.NearestClamp)
	g.depthStencil = create("gbuffer_depth", DepthStencilFormat, common.NearestClamp)
	if err == nil {
		g.framebuffer, err = g.backend.CreateFramebuffer(backend.FramebufferDescriptor{
			Label:        "gbuffer",
			Color:        []backend.Texture{g.position, g.normal, g.material},
			DepthStencil: g.depthStencil,
		})
	}
	if err != nil {
		g.release()
		return fmt.Errorf("framebuffer: failed to create gbuffer: %w", err)
	}
	g.width, g.height = width, height
	return nil
}

func (g *gBuffer) release() {
	release(g.framebuffer, g.position, g.normal, g.material, g.depthStencil)
	g.framebuffer = nil
	g.position, g.normal, g.material, g.depthStencil = nil, nil, nil, nil
	g.width, g.height = 0, 0
}

func (g *gBuffer) Framebuffer() backend.Framebuffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.framebuffer
}

func (g *gBuffer) Position() backend.Texture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

func (g *gBuffer) Normal() backend.Texture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.normal
}

func (g *gBuffer) Material() backend.Texture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.material
}

func (g *gBuffer) DepthStencil() backend.Texture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depthStencil
}

func (g *gBuffer) Size() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.width, g.height
}

func (g *gBuffer) Resize(width, height int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if width == g.width && height == g.height {
		return false, nil
	}
	g.release()
	return true, g.allocate(width, height)
}

func (g *gBuffer) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
}

// lBuffer is the implementation of the LBuffer interface.
type lBuffer struct {
	mu      *sync.Mutex
	backend backend.Backend
	gbuffer GBuffer

	depth       backend.Texture
	color       backend.Texture
	framebuffer backend.Framebuffer
}

// LBuffer is the light accumulation buffer. Its colour texture carries a full mip chain for the
// post-process passes; its depth/stencil surface is the geometry buffer's, referenced and not owned.
type LBuffer interface {
	// Framebuffer returns the render target of the lighting passes.
	Framebuffer() backend.Framebuffer

	// Color returns the RGBA8 accumulated colour texture.
	Color() backend.Texture

	// Sync rebuilds the buffer when the geometry buffer's size or depth surface changed.
	//
	// Returns:
	//   - bool: true if the buffer was rebuilt
	//   - error: error if the buffer could not be created
	Sync() (bool, error)

	// Release releases the colour texture and the framebuffer. Safe to call twice.
	Release()
}

var _ LBuffer = &lBuffer{}

// NewLBuffer creates the light buffer on top of a geometry buffer.
//
// Parameters:
//   - b: the backend to create the buffer on
//   - g: the geometry buffer whose depth/stencil surface is shared
//
// Returns:
//   - LBuffer: the light buffer
//   - error: error if the buffer could not be created
func NewLBuffer(b backend.Backend, g GBuffer) (LBuffer, error) {
	l := &lBuffer{mu: &sync.Mutex{}, backend: b, gbuffer: g}
	if err := l.allocate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *lBuffer) allocate() error {
	width, height := l.gbuffer.Size()
	depth := l.gbuffer.DepthStencil()

	color, err := l.backend.CreateTexture(backend.TextureDescriptor{
		Label:     "lbuffer_color",
		Width:     width,
		Height:    height,
		Format:    ColorFormat,
		MipLevels: MipLevels(width, height),
		Sampler:   common.LinearClamp,
	})
	if err != nil {
		return fmt.Errorf("framebuffer: failed to create lbuffer: %w", err)
	}
	fb, err := l.backend.CreateFramebuffer(backend.FramebufferDescriptor{
		Label:        "lbuffer",
		Color:        []backend.Texture{color},
		DepthStencil: depth,
	})
	if err != nil {
		color.Release()
		return fmt.Errorf("framebuffer: failed to create lbuffer: %w", err)
	}
	l.color, l.framebuffer, l.depth = color, fb, depth
	return nil
}

func (l *lBuffer) release() {
	release(l.framebuffer, l.color)
	l.framebuffer, l.color, l.depth = nil, nil, nil
}

func (l *lBuffer) Framebuffer() backend.Framebuffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.framebuffer
}

func (l *lBuffer) Color() backend.Texture {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lBuffer) Sync() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	depth := l.gbuffer.DepthStencil()
	if l.color != nil && l.depth != nil && depth != nil && depth.ID() == l.depth.ID() {
		return false, nil
	}
	l.release()
	return true, l.allocate()
}

func (l *lBuffer) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release()
}

// shadowMap is the implementation of the ShadowMap interface.
type shadowMap struct {
	mu          *sync.Mutex
	resolution  int
	depth       backend.Texture
	framebuffer backend.Framebuffer
}

// ShadowMap is the square depth target spot light shadows are rendered into. Its sampler compares
// with less-equal so shaders can sample it with a comparison sampler.
type ShadowMap interface {
	// Framebuffer returns the depth-only render target.
	Framebuffer() backend.Framebuffer

	// Depth returns the Depth32Float texture.
	Depth() backend.Texture

	// Resolution returns the edge length in pixels.
	Resolution() int

	// Release releases the texture and the framebuffer. Safe to call twice.
	Release()
}

var _ ShadowMap = &shadowMap{}

// NewShadowMap creates a resolution x resolution shadow map.
//
// Parameters:
//   - b: the backend to create the map on
//   - resolution: the edge length in pixels
//
// Returns:
//   - ShadowMap: the shadow map
//   - error: error if the map could not be created
func NewShadowMap(b backend.Backend, resolution int) (ShadowMap, error) {
	sampler := common.LinearClamp
	sampler.Compare = wgpu.CompareFunctionLessEqual

	depth, err := b.CreateTexture(backend.TextureDescriptor{
		Label:   "shadow_map",
		Width:   resolution,
		Height:  resolution,
		Format:  ShadowFormat,
		Sampler: sampler,
	})
	if err != nil {
		return nil, fmt.Errorf("framebuffer: failed to create shadow map: %w", err)
	}
	fb, err := b.CreateFramebuffer(backend.FramebufferDescriptor{Label: "shadow_map", DepthStencil: depth})
	if err != nil {
		depth.Release()
		return nil, fmt.Errorf("framebuffer: failed to create shadow map: %w", err)
	}
	return &shadowMap{mu: &sync.Mutex{}, resolution: resolution, depth: depth, framebuffer: fb}, nil
}

func (s *shadowMap) Framebuffer() backend.Framebuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framebuffer
}

func (s *shadowMap) Depth() backend.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

func (s *shadowMap) Resolution() int {
	return s.resolution
}

func (s *shadowMap) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	release(s.framebuffer, s.depth)
	s.framebuffer, s.depth = nil, nil
}

// release releases every non-nil resource.
func release(resources ...backend.Resource) {
	for _, r := range resources {
		if r != nil {
			r.Release()
		}
	}
}
