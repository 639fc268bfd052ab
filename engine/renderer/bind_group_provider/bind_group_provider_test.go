package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textureGroupEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{Binding: 3, Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}},
		{Binding: 2, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat}},
	}
}

func TestEntriesSortedByBinding(t *testing.T) {
	p := NewBindGroupProvider("textures", WithGroup(1), WithLayoutEntries(textureGroupEntries()))
	require.Len(t, p.Entries(), 2)
	assert.Equal(t, uint32(2), p.Entries()[0].Binding)
	assert.Equal(t, 1, p.Group())
	assert.Equal(t, "textures", p.Label())
}

func TestKeyRequiresEveryBinding(t *testing.T) {
	p := NewBindGroupProvider("textures", WithLayoutEntries(textureGroupEntries()))
	p.SetTextureView(2, 10, nil)

	_, err := p.Key()
	assert.Error(t, err)

	p.SetSampler(3, 11, nil)
	_, err = p.Key()
	assert.NoError(t, err)
}

func TestKeyFollowsStagedResources(t *testing.T) {
	p := NewBindGroupProvider("textures", WithLayoutEntries(textureGroupEntries()))
	p.SetTextureView(2, 10, nil)
	p.SetSampler(3, 11, nil)
	first, err := p.Key()
	require.NoError(t, err)

	p.SetTextureView(2, 12, nil)
	second, err := p.Key()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	p.SetTextureView(2, 10, nil)
	again, err := p.Key()
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestReleaseClearsStaging(t *testing.T) {
	p := NewBindGroupProvider("uniforms", WithLayoutEntries([]wgpu.BindGroupLayoutEntry{
		{Binding: 0, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
	}))
	p.SetBuffer(0, 1, nil, wgpu.WholeSize)
	_, err := p.Key()
	require.NoError(t, err)

	p.Release()
	assert.Equal(t, 0, p.CachedCount())
	_, err = p.Key()
	assert.Error(t, err)
}
