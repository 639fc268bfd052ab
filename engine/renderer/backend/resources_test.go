package backend

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFramebuffer(t *testing.T) {
	b := NewRecordingBackend(64, 64)
	color, err := b.CreateTexture(TextureDescriptor{Label: "color", Width: 32, Height: 16, Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	depth, err := b.CreateTexture(TextureDescriptor{Label: "depth", Width: 32, Height: 16, Format: wgpu.TextureFormatDepth24PlusStencil8})
	require.NoError(t, err)
	other, err := b.CreateTexture(TextureDescriptor{Label: "other", Width: 8, Height: 8, Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)

	w, h, err := validateFramebuffer(FramebufferDescriptor{Label: "ok", Color: []Texture{color}, DepthStencil: depth})
	require.NoError(t, err)
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)

	_, _, err = validateFramebuffer(FramebufferDescriptor{Label: "mixed", Color: []Texture{color, other}})
	assert.ErrorContains(t, err, `attachment "other" is 8x8, want 32x16`)

	_, _, err = validateFramebuffer(FramebufferDescriptor{Label: "nil", Color: []Texture{nil}})
	assert.ErrorContains(t, err, "nil attachment")

	_, _, err = validateFramebuffer(FramebufferDescriptor{Label: "empty"})
	assert.ErrorContains(t, err, "no attachments")
}
