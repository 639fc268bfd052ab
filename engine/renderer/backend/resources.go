package backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Resource is an owning handle to a GPU object. Release is idempotent.
type Resource interface {
	// ID returns the process-unique identifier of the resource.
	ID() uint64

	// Label returns the debug label of the resource.
	Label() string

	// Release releases the GPU object. Calls after the first are no-ops.
	Release()
}

// Texture is a 2D texture with its sampler.
type Texture interface {
	Resource
	Width() int
	Height() int
	Format() wgpu.TextureFormat
	MipLevels() int
}

// Buffer is a GPU buffer.
type Buffer interface {
	Resource
	Size() uint64
}

// Framebuffer is a set of textures rendered into together. The framebuffer references its
// attachments; it does not own them.
type Framebuffer interface {
	Resource
	ColorAttachments() []Texture
	DepthStencil() Texture
	Width() int
	Height() int
}

// VertexArray binds the buffers of one mesh group.
type VertexArray interface {
	Resource
}

// Program is a compiled vertex and fragment shader pair.
type Program interface {
	Resource
	VertexShader() shader.Shader
	FragmentShader() shader.Shader
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format wgpu.TextureFormat

	// MipLevels is the number of mip levels, 1 when zero.
	MipLevels int

	// Sampler configures the sampler paired with the texture. Unset fields fall back to linear
	// filtering with clamped addressing.
	Sampler common.SamplerStagingData
}

// BufferUsage selects what a buffer is bound as.
type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageIndirect
)

// BufferDescriptor describes a buffer to create. When Contents is set the buffer is created with
// at least its size and filled with it.
type BufferDescriptor struct {
	Label    string
	Size     uint64
	Usage    BufferUsage
	Contents []byte
}

// FramebufferDescriptor describes a render target.
type FramebufferDescriptor struct {
	Label        string
	Color        []Texture
	DepthStencil Texture
}

// VertexStride is the byte size of one interleaved vertex: position vec3, normal vec3, uv vec2.
const VertexStride = 32

// InstanceLocation is the shader location of the per-instance id attribute.
const InstanceLocation = 3

// vertexAttributes are the attributes of the interleaved vertex buffer.
var vertexAttributes = []wgpu.VertexAttribute{
	{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
	{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
	{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
}

// VertexArrayDescriptor describes the buffers of one mesh group. Vertices hold interleaved
// VertexStride-byte vertices, Instances one u32 instance id per instance, Elements u32 indices and
// Indirect 20-byte draw commands.
type VertexArrayDescriptor struct {
	Label     string
	Vertices  Buffer
	Instances Buffer
	Elements  Buffer
	Indirect  Buffer
}

// ProgramDescriptor describes a program to compile. Fragment may be nil for depth-only programs.
type ProgramDescriptor struct {
	Label    string
	Vertex   shader.Shader
	Fragment shader.Shader
}

// validateFramebuffer checks that a framebuffer has at least one attachment and that all of its
// attachments share one size, returning that size.
func validateFramebuffer(desc FramebufferDescriptor) (int, int, error) {
	attachments := append([]Texture(nil), desc.Color...)
	if desc.DepthStencil != nil {
		attachments = append(attachments, desc.DepthStencil)
	}
	if len(attachments) == 0 {
		return 0, 0, fmt.Errorf("backend: framebuffer %q is incomplete: no attachments", desc.Label)
	}
	for _, a := range attachments {
		if a == nil {
			return 0, 0, fmt.Errorf("backend: framebuffer %q is incomplete: nil attachment", desc.Label)
		}
	}
	w, h := attachments[0].Width(), attachments[0].Height()
	for _, a := range attachments {
		if a.Width() != w || a.Height() != h {
			return 0, 0, fmt.Errorf("backend: framebuffer %q is incomplete: attachment %q is %dx%d, want %dx%d",
				desc.Label, a.Label(), a.Width(), a.Height(), w, h)
		}
	}
	return w, h, nil
}
