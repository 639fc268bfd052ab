package smaa

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/draw_pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/mesh_registry"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rec      backend.Recorder
	programs program.Manager
	meshes   mesh_registry.MeshRegistry
	smaa     SMAA
	input    backend.Texture
}

func newFixture(t *testing.T, width, height int) *fixture {
	t.Helper()
	rec := backend.NewRecordingBackend(width, height)
	programs := program.NewManager(rec)
	require.NoError(t, programs.CreateUniformBlocks())
	meshes := mesh_registry.NewMeshRegistry(rec)
	require.NoError(t, meshes.BuildGroup(mesh_registry.Quad, mesh_registry.QuadData()))

	input, err := rec.CreateTexture(backend.TextureDescriptor{
		Label: "frame", Width: width, Height: height, Format: wgpu.TextureFormatRGBA8Unorm, MipLevels: 4,
	})
	require.NoError(t, err)

	s, err := New(rec, programs, draw_pass.NewStateMachine(rec), meshes, width, height)
	require.NoError(t, err)
	return &fixture{rec: rec, programs: programs, meshes: meshes, smaa: s, input: input}
}

func TestNewUploadsLookupTablesOnce(t *testing.T) {
	f := newFixture(t, 320, 240)

	writes := f.rec.CallsOf(backend.OpWriteTexture)
	require.Len(t, writes, 2)
	assert.Equal(t, "smaa_area", writes[0].Label)
	assert.Equal(t, "smaa_search", writes[1].Label)

	require.NoError(t, f.smaa.ResizeBuffers(640, 480))
	assert.Len(t, f.rec.CallsOf(backend.OpWriteTexture), 2)
}

func TestTargetsShareOneStencil(t *testing.T) {
	f := newFixture(t, 320, 240)

	edges, blend := f.smaa.EdgeTexture(), f.smaa.BlendTexture()
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, edges.Format())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, blend.Format())
	assert.Equal(t, 320, edges.Width())

	var stencils int
	for _, c := range f.rec.CallsOf(backend.OpCreateTexture) {
		if c.Label == "smaa_stencil" {
			stencils++
		}
	}
	assert.Equal(t, 1, stencils)
	assert.Equal(t, 2, f.rec.Count(backend.OpCreateFramebuffer))
}

func TestResizeReallocatesOnlyOnChange(t *testing.T) {
	f := newFixture(t, 320, 240)
	live := f.rec.Live()
	f.rec.ResetCalls()

	require.NoError(t, f.smaa.ResizeBuffers(320, 240))
	assert.Zero(t, f.rec.Count(backend.OpCreateTexture))
	assert.Zero(t, f.rec.Count(backend.OpCreateFramebuffer))

	require.NoError(t, f.smaa.ResizeBuffers(800, 600))
	assert.Equal(t, 3, f.rec.Count(backend.OpCreateTexture))
	assert.Equal(t, 2, f.rec.Count(backend.OpCreateFramebuffer))
	assert.Equal(t, 5, f.rec.Count(backend.OpReleaseResource))
	assert.Equal(t, live, f.rec.Live())
	assert.Equal(t, 800, f.smaa.BlendTexture().Width())

	require.NoError(t, f.smaa.ResizeBuffers(800, 600))
	assert.Equal(t, 3, f.rec.Count(backend.OpCreateTexture))
}

func TestRunIssuesThreePasses(t *testing.T) {
	f := newFixture(t, 320, 240)
	f.rec.ResetCalls()

	f.smaa.Run(f.input)

	draws := f.rec.CallsOf(backend.OpDrawIndexedIndirect)
	require.Len(t, draws, 3)
	assert.Equal(t, []string{"smaa_edges", "smaa_blend", backend.SurfaceLabel},
		[]string{draws[0].Framebuffer, draws[1].Framebuffer, draws[2].Framebuffer})
	assert.Equal(t, []string{"smaa_edge", "smaa_blend", "smaa_resolve"},
		[]string{draws[0].Program, draws[1].Program, draws[2].Program})
	assert.Equal(t, draw_pass.State(draw_pass.SMAAEdge), draws[0].State)
	assert.Equal(t, draw_pass.State(draw_pass.SMAABlend), draws[1].State)
	assert.Equal(t, draw_pass.State(draw_pass.SMAAResolve), draws[2].State)
	for _, d := range draws {
		assert.Equal(t, "quad", d.Label)
	}

	mips := f.rec.CallsOf(backend.OpGenerateMipmaps)
	require.Len(t, mips, 1)
	assert.Equal(t, "frame", mips[0].Label)

	clears := f.rec.CallsOf(backend.OpClear)
	require.Len(t, clears, 2)
	for _, c := range clears {
		assert.Equal(t, int(backend.ClearTransparent), c.Count)
	}
}

func TestRunBindsInputsPerPass(t *testing.T) {
	f := newFixture(t, 320, 240)
	f.rec.ResetCalls()

	f.smaa.Run(f.input)

	binds := f.rec.CallsOf(backend.OpBindTexture)
	type bind struct {
		slot  program.TextureSlot
		label string
	}
	var got []bind
	for _, b := range binds {
		got = append(got, bind{program.TextureSlot(b.Slot), b.Label})
	}
	assert.Equal(t, []bind{
		{program.Input, "frame"},
		{program.Input, "smaa_edges"},
		{program.Area, "smaa_area"},
		{program.Search, "smaa_search"},
		{program.Input, "frame"},
		{program.Search, "smaa_blend"},
		{program.Input, ""},
		{program.Search, ""},
	}, got)
}

func TestReleaseFreesStageResources(t *testing.T) {
	rec := backend.NewRecordingBackend(64, 64)
	programs := program.NewManager(rec)
	meshes := mesh_registry.NewMeshRegistry(rec)
	before := rec.Live()

	s, err := New(rec, programs, draw_pass.NewStateMachine(rec), meshes, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, before+7, rec.Live())

	s.Release()
	assert.Equal(t, before, rec.Live())
	s.Release()
	assert.Equal(t, before, rec.Live())
}
