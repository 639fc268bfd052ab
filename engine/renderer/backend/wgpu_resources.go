package backend

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuHandle carries the identity shared by every WebGPU resource handle.
type wgpuHandle struct {
	once  *sync.Once
	id    uint64
	label string
}

func newHandle(label string) wgpuHandle {
	return wgpuHandle{once: &sync.Once{}, id: nextID(), label: label}
}

func (h wgpuHandle) ID() uint64 {
	return h.id
}

func (h wgpuHandle) Label() string {
	return h.label
}

// wgpuTexture owns a texture, the views the backend needs of it and its sampler.
type wgpuTexture struct {
	wgpuHandle
	texture *wgpu.Texture
	format  wgpu.TextureFormat
	width   int
	height  int
	mips    int

	// sampledView covers every mip level; depth/stencil textures expose only their depth aspect.
	sampledView *wgpu.TextureView
	// mipViews holds one single-level view per mip level; mipViews[0] is the attachment view.
	mipViews []*wgpu.TextureView

	sampler   *wgpu.Sampler
	samplerID uint64
	viewID    uint64
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Width() int                 { return t.width }
func (t *wgpuTexture) Height() int                { return t.height }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.format }
func (t *wgpuTexture) MipLevels() int             { return t.mips }

// attachmentView returns the view a render pass attaches.
func (t *wgpuTexture) attachmentView() *wgpu.TextureView {
	return t.mipViews[0]
}

func (t *wgpuTexture) Release() {
	t.once.Do(func() {
		for _, v := range t.mipViews {
			v.Release()
		}
		if t.sampledView != nil {
			t.sampledView.Release()
		}
		if t.sampler != nil {
			t.sampler.Release()
		}
		t.texture.Release()
	})
}

// wgpuBuffer owns a buffer. Indirect buffers keep a CPU copy of their commands so draws can fall
// back to direct calls when the adapter lacks indirect first-instance support.
type wgpuBuffer struct {
	wgpuHandle
	buffer *wgpu.Buffer
	size   uint64
	usage  BufferUsage
	shadow []byte
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Size() uint64 { return b.size }

func (b *wgpuBuffer) Release() {
	b.once.Do(func() {
		b.buffer.Release()
	})
}

// wgpuFramebuffer references its attachments; releasing it releases nothing on the GPU.
type wgpuFramebuffer struct {
	wgpuHandle
	colors       []*wgpuTexture
	depthStencil *wgpuTexture
	width        int
	height       int
}

var _ Framebuffer = &wgpuFramebuffer{}

func (f *wgpuFramebuffer) Width() int  { return f.width }
func (f *wgpuFramebuffer) Height() int { return f.height }

func (f *wgpuFramebuffer) ColorAttachments() []Texture {
	out := make([]Texture, len(f.colors))
	for i, c := range f.colors {
		out[i] = c
	}
	return out
}

func (f *wgpuFramebuffer) DepthStencil() Texture {
	if f.depthStencil == nil {
		return nil
	}
	return f.depthStencil
}

func (f *wgpuFramebuffer) colorFormats() []wgpu.TextureFormat {
	formats := make([]wgpu.TextureFormat, len(f.colors))
	for i, c := range f.colors {
		formats[i] = c.format
	}
	return formats
}

func (f *wgpuFramebuffer) depthFormat() wgpu.TextureFormat {
	if f.depthStencil == nil {
		return wgpu.TextureFormatUndefined
	}
	return f.depthStencil.format
}

func (f *wgpuFramebuffer) Release() {
	f.once.Do(func() {
		f.colors = nil
		f.depthStencil = nil
	})
}

// wgpuVertexArray references the buffers of one mesh group.
type wgpuVertexArray struct {
	wgpuHandle
	vertices  *wgpuBuffer
	instances *wgpuBuffer
	elements  *wgpuBuffer
	indirect  *wgpuBuffer
}

var _ VertexArray = &wgpuVertexArray{}

func (v *wgpuVertexArray) Release() {
	v.once.Do(func() {
		v.vertices, v.instances, v.elements, v.indirect = nil, nil, nil, nil
	})
}

// wgpuProgram owns the shader modules, layouts and bind group providers of one program.
type wgpuProgram struct {
	wgpuHandle
	vertex   shader.Shader
	fragment shader.Shader

	vertexModule   *wgpu.ShaderModule
	fragmentModule *wgpu.ShaderModule

	bindGroupLayouts []*wgpu.BindGroupLayout
	pipelineLayout   *wgpu.PipelineLayout

	// providers holds one bind group provider per non-empty group index.
	providers []bind_group_provider.BindGroupProvider

	// vertexBuffers are the vertex buffer layouts filtered to the locations the vertex shader reads.
	vertexBuffers []wgpu.VertexBufferLayout

	// pipelines is the backend cache holding the render pipelines built from this program.
	pipelines *pipeline.Cache
}

var _ Program = &wgpuProgram{}

func (p *wgpuProgram) VertexShader() shader.Shader   { return p.vertex }
func (p *wgpuProgram) FragmentShader() shader.Shader { return p.fragment }

func (p *wgpuProgram) Release() {
	p.once.Do(func() {
		// pipelines reference the layout released below
		if p.pipelines != nil {
			p.pipelines.EvictProgram(p.id)
		}
		for _, bgp := range p.providers {
			if bgp != nil {
				bgp.Release()
			}
		}
		if p.pipelineLayout != nil {
			p.pipelineLayout.Release()
		}
		for _, l := range p.bindGroupLayouts {
			if l != nil {
				l.Release()
			}
		}
		if p.fragmentModule != nil {
			p.fragmentModule.Release()
		}
		if p.vertexModule != nil {
			p.vertexModule.Release()
		}
	})
}
