package framebuffer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMipLevels(t *testing.T) {
	assert.Equal(t, 1, MipLevels(1, 1))
	assert.Equal(t, 1, MipLevels(0, 0))
	assert.Equal(t, 11, MipLevels(1024, 768))
	assert.Equal(t, 11, MipLevels(1280, 720))
}

func TestGBufferAttachments(t *testing.T) {
	rec := backend.NewRecordingBackend(320, 240)
	g, err := NewGBuffer(rec, 320, 240)
	require.NoError(t, err)

	assert.Equal(t, PositionFormat, g.Position().Format())
	assert.Equal(t, NormalFormat, g.Normal().Format())
	assert.Equal(t, MaterialFormat, g.Material().Format())
	assert.Equal(t, DepthStencilFormat, g.DepthStencil().Format())

	fb := g.Framebuffer()
	require.Len(t, fb.ColorAttachments(), 3)
	assert.Equal(t, g.DepthStencil().ID(), fb.DepthStencil().ID())
	w, h := g.Size()
	assert.Equal(t, [2]int{320, 240}, [2]int{w, h})
}

func TestLBufferSharesDepth(t *testing.T) {
	rec := backend.NewRecordingBackend(320, 240)
	g, err := NewGBuffer(rec, 320, 240)
	require.NoError(t, err)
	l, err := NewLBuffer(rec, g)
	require.NoError(t, err)

	assert.Equal(t, g.DepthStencil().ID(), l.Framebuffer().DepthStencil().ID())
	assert.Equal(t, MipLevels(320, 240), l.Color().MipLevels())
	assert.Equal(t, ColorFormat, l.Color().Format())

	l.Release()
	assert.NotNil(t, g.DepthStencil())
}

func TestResizeIsIdempotent(t *testing.T) {
	rec := backend.NewRecordingBackend(320, 240)
	g, err := NewGBuffer(rec, 320, 240)
	require.NoError(t, err)
	l, err := NewLBuffer(rec, g)
	require.NoError(t, err)
	live := rec.Live()
	rec.ResetCalls()

	changed, err := g.Resize(320, 240)
	require.NoError(t, err)
	assert.False(t, changed)
	synced, err := l.Sync()
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Zero(t, rec.Count(backend.OpCreateTexture))

	changed, err = g.Resize(640, 480)
	require.NoError(t, err)
	assert.True(t, changed)
	synced, err = l.Sync()
	require.NoError(t, err)
	assert.True(t, synced)

	assert.Equal(t, 5, rec.Count(backend.OpCreateTexture))
	assert.Equal(t, 2, rec.Count(backend.OpCreateFramebuffer))
	assert.Equal(t, live, rec.Live())
	assert.Equal(t, 640, l.Color().Width())
	assert.Equal(t, g.DepthStencil().ID(), l.Framebuffer().DepthStencil().ID())

	rec.ResetCalls()
	_, err = g.Resize(640, 480)
	require.NoError(t, err)
	_, err = l.Sync()
	require.NoError(t, err)
	assert.Zero(t, rec.Count(backend.OpCreateTexture))
}

func TestInvalidSizeFails(t *testing.T) {
	rec := backend.NewRecordingBackend(320, 240)
	_, err := NewGBuffer(rec, 0, 240)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "framebuffer: failed to create gbuffer")
	assert.Zero(t, rec.Live())
}

func TestShadowMap(t *testing.T) {
	rec := backend.NewRecordingBackend(320, 240)
	s, err := NewShadowMap(rec, DefaultShadowResolution)
	require.NoError(t, err)

	assert.Equal(t, DefaultShadowResolution, s.Resolution())
	assert.Equal(t, ShadowFormat, s.Depth().Format())
	assert.Empty(t, s.Framebuffer().ColorAttachments())
	assert.Equal(t, DefaultShadowResolution, s.Framebuffer().Width())

	s.Release()
	s.Release()
	assert.Zero(t, rec.Live())
}

func TestReleaseIsSafeTwice(t *testing.T) {
	rec := backend.NewRecordingBackend(320, 240)
	g, err := NewGBuffer(rec, 320, 240)
	require.NoError(t, err)
	l, err := NewLBuffer(rec, g)
	require.NoError(t, err)

	l.Release()
	g.Release()
	g.Release()
	assert.Zero(t, rec.Live())
	assert.Equal(t, 7, rec.Count(backend.OpReleaseResource))
}
