package ssr

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/draw_pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/mesh_registry"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rec     backend.Recorder
	gbuffer framebuffer.GBuffer
	lbuffer framebuffer.LBuffer
	ssr     SSR
}

func newFixture(t *testing.T, width, height int) *fixture {
	t.Helper()
	rec := backend.NewRecordingBackend(width, height)
	programs := program.NewManager(rec)
	meshes := mesh_registry.NewMeshRegistry(rec)
	require.NoError(t, meshes.BuildGroup(mesh_registry.Quad, mesh_registry.QuadData()))

	g, err := framebuffer.NewGBuffer(rec, width, height)
	require.NoError(t, err)
	l, err := framebuffer.NewLBuffer(rec, g)
	require.NoError(t, err)

	s, err := New(rec, programs, draw_pass.NewStateMachine(rec), meshes, width, height)
	require.NoError(t, err)
	return &fixture{rec: rec, gbuffer: g, lbuffer: l, ssr: s}
}

func (f *fixture) input() Input {
	return Input{Color: f.lbuffer.Color(), Depth: f.gbuffer.DepthStencil(), Framebuffer: f.lbuffer.Framebuffer()}
}

func TestRunCopiesThenDrawsIntoOutput(t *testing.T) {
	f := newFixture(t, 320, 240)
	f.rec.ResetCalls()

	out := f.ssr.Run(f.input())

	require.NotNil(t, out.Color)
	assert.Equal(t, "ssr_output", out.Color.Label())
	assert.Equal(t, out.Color.ID(), out.Framebuffer.ColorAttachments()[0].ID())
	assert.Equal(t, framebuffer.MipLevels(320, 240), out.Color.MipLevels())

	blits := f.rec.CallsOf(backend.OpBlitFramebuffer)
	require.Len(t, blits, 1)
	assert.Equal(t, "lbuffer", blits[0].Label)
	assert.Equal(t, "ssr_output", blits[0].Framebuffer)

	draws := f.rec.CallsOf(backend.OpDrawIndexedIndirect)
	require.Len(t, draws, 1)
	assert.Equal(t, "ssr_output", draws[0].Framebuffer)
	assert.Equal(t, "ssr", draws[0].Program)
	assert.Equal(t, draw_pass.State(draw_pass.SSR), draws[0].State)

	var blitAt, drawAt int
	for i, c := range f.rec.Calls() {
		switch c.Op {
		case backend.OpBlitFramebuffer:
			blitAt = i
		case backend.OpDrawIndexedIndirect:
			drawAt = i
		}
	}
	assert.Less(t, blitAt, drawAt)
}

func TestRunBindsColourAndDepth(t *testing.T) {
	f := newFixture(t, 320, 240)
	f.rec.ResetCalls()

	f.ssr.Run(f.input())

	binds := f.rec.CallsOf(backend.OpBindTexture)
	require.Len(t, binds, 2)
	assert.Equal(t, int(program.Input), binds[0].Slot)
	assert.Equal(t, "lbuffer_color", binds[0].Label)
	assert.Equal(t, int(program.Search), binds[1].Slot)
	assert.Equal(t, "gbuffer_depth", binds[1].Label)
}

func TestResizeReallocatesOnlyOnChange(t *testing.T) {
	f := newFixture(t, 320, 240)
	live := f.rec.Live()
	f.rec.ResetCalls()

	require.NoError(t, f.ssr.Resize(320, 240))
	assert.Zero(t, f.rec.Count(backend.OpCreateTexture))

	require.NoError(t, f.ssr.Resize(640, 480))
	assert.Equal(t, 1, f.rec.Count(backend.OpCreateTexture))
	assert.Equal(t, 1, f.rec.Count(backend.OpCreateFramebuffer))
	assert.Equal(t, live, f.rec.Live())

	out := f.ssr.Run(f.input())
	assert.Equal(t, 640, out.Color.Width())
}

func TestReleaseIsSafeTwice(t *testing.T) {
	f := newFixture(t, 64, 64)
	live := f.rec.Live()

	f.ssr.Release()
	f.ssr.Release()
	assert.Equal(t, live-2, f.rec.Live())
}
