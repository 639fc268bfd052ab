package backend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingTracksLiveResources(t *testing.T) {
	b := NewRecordingBackend(64, 64)

	tex, err := b.CreateTexture(TextureDescriptor{Label: "color", Width: 64, Height: 64, Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	buf, err := b.CreateBuffer(BufferDescriptor{Label: "uniform", Size: 16, Usage: BufferUsageUniform})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Live())

	tex.Release()
	tex.Release()
	assert.Equal(t, 1, b.Live())
	assert.Equal(t, 1, b.Count(OpReleaseResource))

	buf.Release()
	assert.Equal(t, 0, b.Live())
	assert.NotEqual(t, tex.ID(), buf.ID())
}

func TestRecordingFramebufferCompleteness(t *testing.T) {
	b := NewRecordingBackend(64, 64)
	small, _ := b.CreateTexture(TextureDescriptor{Label: "small", Width: 32, Height: 32, Format: wgpu.TextureFormatRGBA8Unorm})
	large, _ := b.CreateTexture(TextureDescriptor{Label: "large", Width: 64, Height: 64, Format: wgpu.TextureFormatDepth24PlusStencil8})

	_, err := b.CreateFramebuffer(FramebufferDescriptor{Label: "mixed", Color: []Texture{small}, DepthStencil: large})
	assert.Error(t, err)

	_, err = b.CreateFramebuffer(FramebufferDescriptor{Label: "empty"})
	assert.Error(t, err)

	fb, err := b.CreateFramebuffer(FramebufferDescriptor{Label: "ok", DepthStencil: large})
	require.NoError(t, err)
	assert.Equal(t, 64, fb.Width())
	assert.Equal(t, large, fb.DepthStencil())
}

func TestRecordingWriteBufferKeepsContents(t *testing.T) {
	b := NewRecordingBackend(64, 64)
	buf, err := b.CreateBuffer(BufferDescriptor{Label: "indirect", Usage: BufferUsageIndirect, Contents: []byte{1, 2, 3, 4}})
	require.NoError(t, err)

	b.WriteBuffer(buf, 2, []byte{9, 9, 9})
	assert.Equal(t, []byte{1, 2, 9, 9, 9}, b.Contents(buf))
}

func TestRecordingStampsBindingContext(t *testing.T) {
	b := NewRecordingBackend(64, 64)
	color, _ := b.CreateTexture(TextureDescriptor{Label: "color", Width: 64, Height: 64, Format: wgpu.TextureFormatRGBA8Unorm})
	fb, _ := b.CreateFramebuffer(FramebufferDescriptor{Label: "target", Color: []Texture{color}})
	_, err := b.CreateProgram(ProgramDescriptor{Label: "prog"})
	assert.Error(t, err)

	state := pipeline.PassState{WriteMask: wgpu.ColorWriteMaskAll, StencilReference: 1}
	require.NoError(t, b.BeginFrame())
	b.BindFramebuffer(fb)
	b.ApplyPassState(state)
	b.DrawIndexedIndirect(3)
	b.BlitFramebuffer(fb, nil)
	require.NoError(t, b.EndFrame())

	draws := b.CallsOf(OpDrawIndexedIndirect)
	require.Len(t, draws, 1)
	assert.Equal(t, "target", draws[0].Framebuffer)
	assert.Equal(t, 3, draws[0].Count)
	assert.Equal(t, uint32(1), draws[0].State.StencilReference)

	blits := b.CallsOf(OpBlitFramebuffer)
	require.Len(t, blits, 1)
	assert.Equal(t, SurfaceLabel, blits[0].Framebuffer)
	assert.Equal(t, "target", blits[0].Label)
}

func TestRecordingFrameBoundaries(t *testing.T) {
	b := NewRecordingBackend(64, 64)
	assert.Error(t, b.EndFrame())
	require.NoError(t, b.BeginFrame())
	assert.Error(t, b.BeginFrame())
	require.NoError(t, b.EndFrame())
}

func TestVertexBufferLayouts(t *testing.T) {
	layouts, err := vertexBufferLayouts([]wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x2, ShaderLocation: 2},
		{Format: wgpu.VertexFormatUint32, ShaderLocation: InstanceLocation},
	})
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, uint64(VertexStride), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 2)
	assert.Equal(t, uint64(24), layouts[0].Attributes[1].Offset)
	assert.Equal(t, wgpu.VertexStepModeInstance, layouts[1].StepMode)
	assert.Len(t, layouts[1].Attributes, 1)

	_, err = vertexBufferLayouts([]wgpu.VertexAttribute{{Format: wgpu.VertexFormatFloat32x4, ShaderLocation: 0}})
	assert.Error(t, err)
	_, err = vertexBufferLayouts([]wgpu.VertexAttribute{{Format: wgpu.VertexFormatFloat32, ShaderLocation: 7}})
	assert.Error(t, err)
}

func TestMergeBindGroupLayouts(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageVertex}}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 4, Visibility: wgpu.ShaderStageFragment},
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
		}},
		1: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 2, Visibility: wgpu.ShaderStageFragment}}},
	}

	merged := mergeBindGroupLayouts(vertex, fragment)
	require.Len(t, merged, 2)
	entries := merged[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(1), entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entries[0].Visibility)
	assert.Equal(t, uint32(4), entries[1].Binding)
}
