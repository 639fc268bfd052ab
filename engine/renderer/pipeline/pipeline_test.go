package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lightStencil = PassState{
	WriteMask:        wgpu.ColorWriteMaskNone,
	CullMode:         wgpu.CullModeNone,
	DepthTest:        true,
	DepthCompare:     wgpu.CompareFunctionLessEqual,
	StencilTest:      true,
	StencilReference: 0x80,
	StencilReadMask:  0xff,
	StencilWriteMask: 0xff,
	StencilFront: StencilFace{
		Compare:     wgpu.CompareFunctionNotEqual,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationDecrementWrap,
		PassOp:      wgpu.StencilOperationKeep,
	},
	StencilBack: StencilFace{
		Compare:     wgpu.CompareFunctionNotEqual,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationIncrementWrap,
		PassOp:      wgpu.StencilOperationKeep,
	},
}

func TestDepthStencilNilWithoutDepthTarget(t *testing.T) {
	assert.Nil(t, lightStencil.DepthStencil(wgpu.TextureFormatUndefined))
}

func TestDepthStencilCarriesStencilFaces(t *testing.T) {
	ds := lightStencil.DepthStencil(wgpu.TextureFormatDepth24PlusStencil8)
	require.NotNil(t, ds)

	assert.False(t, ds.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, ds.DepthCompare)
	assert.Equal(t, wgpu.StencilOperationIncrementWrap, ds.StencilBack.DepthFailOp)
	assert.Equal(t, wgpu.StencilOperationDecrementWrap, ds.StencilFront.DepthFailOp)
	assert.Equal(t, uint32(0xff), ds.StencilWriteMask)
}

func TestDepthStencilIgnoresStencilOnDepthOnlyFormat(t *testing.T) {
	ds := lightStencil.DepthStencil(wgpu.TextureFormatDepth32Float)
	require.NotNil(t, ds)
	assert.Equal(t, KeepFace, ds.StencilFront)
	assert.Equal(t, uint32(0), ds.StencilWriteMask)
}

func TestDisabledDepthTestAlwaysPasses(t *testing.T) {
	ds := PassState{DepthWrite: true}.DepthStencil(wgpu.TextureFormatDepth24PlusStencil8)
	assert.Equal(t, wgpu.CompareFunctionAlways, ds.DepthCompare)
	assert.False(t, ds.DepthWriteEnabled)
}

func TestColorTargetsSkipBlendOnIntegerFormats(t *testing.T) {
	s := PassState{WriteMask: wgpu.ColorWriteMaskAll, BlendEnabled: true, Blend: AdditiveBlend}
	targets := s.ColorTargets([]wgpu.TextureFormat{wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatR8Uint})

	require.Len(t, targets, 2)
	require.NotNil(t, targets[0].Blend)
	assert.Equal(t, wgpu.BlendFactorOne, targets[0].Blend.Color.DstFactor)
	assert.Nil(t, targets[1].Blend)
}

func TestKeyDistinguishesInputs(t *testing.T) {
	formats := []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}
	base := Key(1, lightStencil, formats, wgpu.TextureFormatDepth24PlusStencil8, 7)

	assert.Equal(t, base, Key(1, lightStencil, formats, wgpu.TextureFormatDepth24PlusStencil8, 7))
	assert.NotEqual(t, base, Key(2, lightStencil, formats, wgpu.TextureFormatDepth24PlusStencil8, 7))
	assert.NotEqual(t, base, Key(1, lightStencil, formats, wgpu.TextureFormatUndefined, 7))
	assert.NotEqual(t, base, Key(1, PassState{}, formats, wgpu.TextureFormatDepth24PlusStencil8, 7))

	// the reference is dynamic render pass state and must not split pipelines
	other := lightStencil
	other.StencilReference = 1
	assert.Equal(t, base, Key(1, other, formats, wgpu.TextureFormatDepth24PlusStencil8, 7))
}

func TestDescriptorWithoutFragmentHasNoTargets(t *testing.T) {
	p := NewPipeline(1, WithLabel("shadow"), WithPassState(PassState{DepthTest: true, DepthWrite: true}), WithDepthFormat(wgpu.TextureFormatDepth32Float))
	desc := p.Descriptor(nil, wgpu.VertexState{EntryPoint: "vs_main"}, nil, "")

	assert.Nil(t, desc.Fragment)
	require.NotNil(t, desc.DepthStencil)
	assert.True(t, desc.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, wgpu.CullModeNone, desc.Primitive.CullMode)
}

func TestCacheEvictProgram(t *testing.T) {
	c := NewCache()
	c.Put(NewPipeline(1, WithProgramID(10)))
	c.Put(NewPipeline(2, WithProgramID(10)))
	c.Put(NewPipeline(3, WithProgramID(11)))

	_, ok := c.Get(4)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Misses())

	assert.Equal(t, 2, c.EvictProgram(10))
	assert.Equal(t, 1, c.Len())
	c.Release()
	assert.Equal(t, 0, c.Len())
}
