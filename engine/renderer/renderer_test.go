package renderer

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/draw_pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/mesh_registry"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 320
	testHeight = 240
)

// twoMeshScene holds two meshes with one instance each.
func twoMeshScene(opts ...scene.SceneBuilderOption) scene.Scene {
	base := []scene.SceneBuilderOption{
		scene.WithMaterials(
			scene.Material{ID: 1, DiffuseColour: mgl32.Vec3{1, 0, 0}, Shininess: 8},
			scene.Material{ID: 2, DiffuseColour: mgl32.Vec3{0, 1, 0}, Shininess: 8},
		),
		scene.WithMeshes(scene.Box(10, mgl32.Vec3{1, 1, 1}), scene.Plane(20, 4)),
		scene.WithInstances(
			scene.Instance{MeshID: 10, MaterialID: 1, Transform: mgl32.Translate3D(0, 0, -5)},
			scene.Instance{MeshID: 20, MaterialID: 2, Transform: mgl32.Translate3D(0, -1, -5)},
		),
	}
	return scene.NewScene(append(base, opts...)...)
}

func newRenderer(t *testing.T, s scene.Scene, opts ...RendererBuilderOption) (*renderer, backend.Recorder) {
	t.Helper()
	rec := backend.NewRecordingBackend(testWidth, testHeight)
	opts = append([]RendererBuilderOption{WithWorkerCount(2), WithShadowResolution(256)}, opts...)
	r := NewRenderer(rec, s, opts...).(*renderer)
	require.NoError(t, r.Setup(testWidth, testHeight))
	t.Cleanup(func() { _ = r.Teardown() })
	return r, rec
}

// drawsWhere returns the draws matching a predicate.
func drawsWhere(rec backend.Recorder, match func(c backend.Call) bool) []backend.Call {
	var out []backend.Call
	for _, c := range rec.CallsOf(backend.OpDrawIndexedIndirect) {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

func frameInstance(t *testing.T, r *renderer, rec backend.Recorder, i int) (mgl32.Mat4, uint32) {
	t.Helper()
	data := rec.Contents(r.programs.UniformBuffer(program.Frame))
	require.GreaterOrEqual(t, len(data), program.GPUPerFrameSize)
	off := i * program.GPUInstanceSize
	var m mgl32.Mat4
	for k := range 16 {
		m[k] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4*k:]))
	}
	return m, binary.LittleEndian.Uint32(data[off+64:])
}

func TestSetupBatchesOneInstancePerMesh(t *testing.T) {
	r, _ := newRenderer(t, twoMeshScene())

	cmds := r.meshes.Commands(mesh_registry.Scene)
	require.Len(t, cmds, 2)
	assert.Equal(t, uint32(0), cmds[0].BaseInstance)
	assert.Equal(t, uint32(1), cmds[1].BaseInstance)
	assert.Equal(t, []uint32{0, 1}, r.meshes.Instances(mesh_registry.Scene))
}

func TestFrameDataFollowsInstanceIDs(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene())
	require.NoError(t, r.Render())

	m0, idx0 := frameInstance(t, r, rec, 0)
	m1, idx1 := frameInstance(t, r, rec, 1)
	assert.Equal(t, mgl32.Translate3D(0, 0, -5), m0)
	assert.Equal(t, mgl32.Translate3D(0, -1, -5), m1)
	assert.Equal(t, uint32(0), idx0)
	assert.Equal(t, uint32(1), idx1)

	// unused entries stay zero
	m2, _ := frameInstance(t, r, rec, 2)
	assert.Equal(t, mgl32.Mat4{}, m2)
}

func TestReflectiveMeshUsesReflectiveMaterial(t *testing.T) {
	s := twoMeshScene()
	r, rec := newRenderer(t, s, WithReflectiveMesh(20, 100))
	require.NoError(t, r.Render())

	_, idx0 := frameInstance(t, r, rec, 0)
	_, idx1 := frameInstance(t, r, rec, 1)
	assert.Equal(t, uint32(0), idx0)
	assert.Equal(t, r.materials.ReflectiveIndex(), idx1)
	assert.Equal(t, uint32(2), idx1)
}

func TestFrameOrder(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene())
	rec.ResetCalls()
	require.NoError(t, r.Render())

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, backend.OpBeginFrame, calls[0].Op)
	assert.Equal(t, backend.OpEndFrame, calls[len(calls)-1].Op)

	clears := rec.CallsOf(backend.OpClear)
	require.GreaterOrEqual(t, len(clears), 2)
	assert.Equal(t, "gbuffer", clears[0].Label)
	assert.Equal(t, int(backend.ClearDepth|backend.ClearStencil), clears[0].Count)
	assert.Equal(t, "lbuffer", clears[1].Label)
	assert.Equal(t, int(backend.ClearColor), clears[1].Count)

	draws := rec.CallsOf(backend.OpDrawIndexedIndirect)
	require.GreaterOrEqual(t, len(draws), 2)
	assert.Equal(t, "scene", draws[0].Label)
	assert.Equal(t, "gbuffer", draws[0].Framebuffer)
	assert.Equal(t, "gbuffer", draws[0].Program)
	assert.Equal(t, draw_pass.State(draw_pass.GBuffer), draws[0].State)
	assert.Equal(t, "quad", draws[1].Label)
	assert.Equal(t, "lbuffer", draws[1].Framebuffer)
	assert.Equal(t, "ambient", draws[1].Program)

	// SMAA is the last stage and resolves onto the display
	last := draws[len(draws)-1]
	assert.Equal(t, "smaa_resolve", last.Program)
	assert.Equal(t, backend.SurfaceLabel, last.Framebuffer)
	// only the reflection pass copies
	assert.Equal(t, 1, rec.Count(backend.OpBlitFramebuffer))
}

func TestNoPostProcessBlitsOnce(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene(), WithSSR(false), WithSMAA(false))
	rec.ResetCalls()
	require.NoError(t, r.Render())

	blits := rec.CallsOf(backend.OpBlitFramebuffer)
	require.Len(t, blits, 1)
	assert.Equal(t, "lbuffer", blits[0].Label)
	assert.Equal(t, backend.SurfaceLabel, blits[0].Framebuffer)

	post := drawsWhere(rec, func(c backend.Call) bool {
		switch c.Program {
		case "ssr", "smaa_edge", "smaa_blend", "smaa_resolve":
			return true
		}
		return false
	})
	assert.Empty(t, post)
}

func TestSSRWithoutSMAABlitsReflections(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene(), WithSMAA(false))
	rec.ResetCalls()
	require.NoError(t, r.Render())

	blits := rec.CallsOf(backend.OpBlitFramebuffer)
	require.Len(t, blits, 2)
	assert.Equal(t, "ssr_output", blits[1].Label)
	assert.Equal(t, backend.SurfaceLabel, blits[1].Framebuffer)
}

func spotScene(flagged, unflagged int) scene.Scene {
	var lights []light.Light
	for range flagged {
		lights = append(lights, light.NewLight(light.LightTypeSpot,
			light.WithPosition(0, 4, -5), light.WithCastsShadows(true)))
	}
	for range unflagged {
		lights = append(lights, light.NewLight(light.LightTypeSpot,
			light.WithPosition(2, 4, -5), light.WithCastsShadows(false)))
	}
	return twoMeshScene(scene.WithLights(lights...))
}

func shadowDraws(rec backend.Recorder) []backend.Call {
	return drawsWhere(rec, func(c backend.Call) bool { return c.Framebuffer == "shadow_map" })
}

func TestFlaggedSpotLightRendersOneShadowPass(t *testing.T) {
	r, rec := newRenderer(t, spotScene(1, 0))
	rec.ResetCalls()
	require.NoError(t, r.Render())

	shadows := shadowDraws(rec)
	require.Len(t, shadows, 1)
	assert.Equal(t, "shadows", shadows[0].Program)
	assert.Equal(t, "scene", shadows[0].Label)
	assert.Equal(t, draw_pass.State(draw_pass.ShadowMap), shadows[0].State)

	var shadowAt, shadeAt = -1, -1
	for i, c := range rec.Calls() {
		if c.Op != backend.OpDrawIndexedIndirect {
			continue
		}
		if c.Framebuffer == "shadow_map" && shadowAt < 0 {
			shadowAt = i
		}
		if c.Label == "cone" && shadeAt < 0 {
			shadeAt = i
			assert.Equal(t, "spot_shadow", c.Program)
			assert.Equal(t, "lbuffer", c.Framebuffer)
		}
	}
	require.GreaterOrEqual(t, shadowAt, 0)
	assert.Less(t, shadowAt, shadeAt)

	// the shadow viewport is restored before shading
	viewports := rec.CallsOf(backend.OpSetViewport)
	require.Len(t, viewports, 2)
	assert.Equal(t, 256*256, viewports[0].Count)
	assert.Equal(t, testWidth*testHeight, viewports[1].Count)
}

func TestUnflaggedSpotLightSkipsShadowPass(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		r, rec := newRenderer(t, spotScene(0, 1), WithShadows(enabled))
		rec.ResetCalls()
		require.NoError(t, r.Render())

		assert.Empty(t, shadowDraws(rec))
		cones := drawsWhere(rec, func(c backend.Call) bool { return c.Label == "cone" })
		require.Len(t, cones, 2)
		assert.Equal(t, "spot_light", cones[0].Program)
		assert.Equal(t, draw_pass.State(draw_pass.LightStencil), cones[0].State)
		assert.Equal(t, draw_pass.State(draw_pass.LightShading), cones[1].State)
	}
}

func TestShadowToggleSkipsFlaggedLights(t *testing.T) {
	r, rec := newRenderer(t, spotScene(2, 1))
	rec.ResetCalls()
	require.NoError(t, r.Render())
	assert.Len(t, shadowDraws(rec), 2)

	assert.False(t, r.ToggleShadows())
	rec.ResetCalls()
	require.NoError(t, r.Render())
	assert.Empty(t, shadowDraws(rec))
	assert.Len(t, drawsWhere(rec, func(c backend.Call) bool { return c.Label == "cone" }), 6)
}

func TestPointLightsDrawStencilThenShading(t *testing.T) {
	s := twoMeshScene(scene.WithLights(
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 1, -5)),
		light.NewLight(light.LightTypePoint, light.WithPosition(1, 1, -5), light.WithEnabled(false)),
	))
	r, rec := newRenderer(t, s)
	rec.ResetCalls()
	require.NoError(t, r.Render())

	spheres := drawsWhere(rec, func(c backend.Call) bool { return c.Label == "sphere" })
	require.Len(t, spheres, 2)
	assert.Equal(t, "point_light", spheres[0].Program)
	assert.Equal(t, draw_pass.State(draw_pass.LightStencil), spheres[0].State)
	assert.Equal(t, draw_pass.State(draw_pass.LightShading), spheres[1].State)
}

func TestLightCullingSkipsLightsBehindTheCamera(t *testing.T) {
	lights := scene.WithLights(
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -10), light.WithRange(2)),
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, 50), light.WithRange(2)),
	)

	r, rec := newRenderer(t, twoMeshScene(lights))
	rec.ResetCalls()
	require.NoError(t, r.Render())
	assert.Len(t, drawsWhere(rec, func(c backend.Call) bool { return c.Label == "sphere" }), 4)

	r, rec = newRenderer(t, twoMeshScene(lights), WithLightCulling(true))
	rec.ResetCalls()
	require.NoError(t, r.Render())
	assert.Len(t, drawsWhere(rec, func(c backend.Call) bool { return c.Label == "sphere" }), 2)
}

func manyInstances(n int) scene.Scene {
	instances := make([]scene.Instance, n)
	for i := range instances {
		instances[i] = scene.Instance{MeshID: 10, MaterialID: 1, Transform: mgl32.Translate3D(float32(i), 0, -5)}
	}
	return scene.NewScene(
		scene.WithMaterials(scene.Material{ID: 1}),
		scene.WithMeshes(scene.Box(10, mgl32.Vec3{1, 1, 1})),
		scene.WithInstances(instances...),
	)
}

func TestSetupRejectsInstanceOverflow(t *testing.T) {
	rec := backend.NewRecordingBackend(testWidth, testHeight)
	r := NewRenderer(rec, manyInstances(program.MaxInstances+1))

	err := r.Setup(testWidth, testHeight)
	require.ErrorIs(t, err, ErrInstanceOverflow)
	assert.Zero(t, rec.Live())
	assert.ErrorIs(t, r.Render(), ErrNotSetUp)
}

func TestRenderClampsInstancesAddedAfterSetup(t *testing.T) {
	s := manyInstances(program.MaxInstances)
	r, _ := newRenderer(t, s)

	s.AddInstance(scene.Instance{MeshID: 10, MaterialID: 1, Transform: mgl32.Ident4()})
	require.NoError(t, r.Render())
	assert.True(t, r.overflowWarned)
	require.NoError(t, r.Render())

	cmds := r.meshes.Commands(mesh_registry.Scene)
	require.Len(t, cmds, 1)
	assert.Equal(t, uint32(program.MaxInstances), cmds[0].InstanceCount)
}

func TestInstancesAddedAfterSetupKeepMeshesAligned(t *testing.T) {
	s := twoMeshScene()
	r, rec := newRenderer(t, s)

	s.AddInstance(scene.Instance{MeshID: 10, MaterialID: 1, Transform: mgl32.Translate3D(9, 9, 9)})
	require.NoError(t, r.Render())

	cmds := r.meshes.Commands(mesh_registry.Scene)
	require.Len(t, cmds, 2)
	assert.Equal(t, uint32(2), cmds[0].InstanceCount)
	assert.Equal(t, uint32(2), cmds[1].BaseInstance)
	assert.Equal(t, []uint32{0, 1, 2}, r.meshes.Instances(mesh_registry.Scene))

	m, _ := frameInstance(t, r, rec, 1)
	assert.Equal(t, mgl32.Translate3D(9, 9, 9), m)
	m, idx := frameInstance(t, r, rec, int(cmds[1].BaseInstance))
	assert.Equal(t, mgl32.Translate3D(0, -1, -5), m)
	assert.Equal(t, r.materials.Index(2), idx)
}

func TestUnchangedGeometryIsNotRebuilt(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene())
	rec.ResetCalls()

	require.NoError(t, r.Render())
	assert.Zero(t, rec.Count(backend.OpCreateBuffer))
}

func TestUnknownMaterialPanics(t *testing.T) {
	s := twoMeshScene()
	r, _ := newRenderer(t, s)
	s.AddInstance(scene.Instance{MeshID: 10, MaterialID: 77, Transform: mgl32.Ident4()})

	assert.PanicsWithValue(t, "renderer: unknown material ids [77]", func() { _ = r.Render() })
}

func TestMaterialChangesRebuildTheTable(t *testing.T) {
	s := twoMeshScene()
	r, _ := newRenderer(t, s)
	assert.Equal(t, 3, r.materials.Len())

	s.AddMaterial(scene.Material{ID: 5, Shininess: 2})
	require.NoError(t, r.Render())
	assert.Equal(t, 4, r.materials.Len())
	assert.Equal(t, uint32(3), r.materials.ReflectiveIndex())
}

// failingTextures fails to create one texture once armed.
type failingTextures struct {
	backend.Recorder
	label string
	armed bool
}

func (f *failingTextures) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	if f.armed && desc.Label == f.label {
		return nil, errors.New("out of memory")
	}
	return f.Recorder.CreateTexture(desc)
}

func TestResizeFailureIsFatal(t *testing.T) {
	b := &failingTextures{Recorder: backend.NewRecordingBackend(testWidth, testHeight), label: "gbuffer_depth"}
	r := NewRenderer(b, twoMeshScene(), WithWorkerCount(2), WithShadowResolution(256)).(*renderer)
	require.NoError(t, r.Setup(testWidth, testHeight))
	t.Cleanup(func() { _ = r.Teardown() })

	b.armed = true
	assert.Panics(t, func() { _ = r.Resize(640, 480) })

	b.ResetCalls()
	assert.ErrorIs(t, r.Render(), ErrNotSetUp)
	assert.Empty(t, b.CallsOf(backend.OpDrawIndexedIndirect))
}

func TestResizeReallocatesOnlyOnChange(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene())
	rec.ResetCalls()

	require.NoError(t, r.Resize(testWidth, testHeight))
	assert.Zero(t, rec.Count(backend.OpCreateTexture))
	assert.Zero(t, rec.Count(backend.OpCreateFramebuffer))

	live := rec.Live()
	require.NoError(t, r.Resize(640, 480))
	// gbuffer 4, lbuffer 1, ssr 1, smaa 3
	assert.Equal(t, 9, rec.Count(backend.OpCreateTexture))
	assert.Equal(t, 5, rec.Count(backend.OpCreateFramebuffer))
	assert.Equal(t, live, rec.Live())
	assert.Equal(t, 1, rec.Count(backend.OpConfigureSurface))

	w, h := r.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	require.NoError(t, r.Render())
}

func TestTeardownReleasesEverything(t *testing.T) {
	rec := backend.NewRecordingBackend(testWidth, testHeight)
	r := NewRenderer(rec, spotScene(1, 1), WithWorkerCount(1))
	require.NoError(t, r.Setup(testWidth, testHeight))
	require.NoError(t, r.Render())
	assert.NotZero(t, rec.Live())

	require.NoError(t, r.Teardown())
	assert.Zero(t, rec.Live())
	assert.ErrorIs(t, r.Render(), ErrNotSetUp)
	require.NoError(t, r.Teardown())

	// a torn down renderer can be set up again
	require.NoError(t, r.Setup(testWidth, testHeight))
	require.NoError(t, r.Render())
	require.NoError(t, r.Teardown())
	assert.Zero(t, rec.Live())
}

func TestReleaseStageTurnsPanicsIntoErrors(t *testing.T) {
	err := releaseStage("ssr", func() { panic("device lost") })
	assert.EqualError(t, err, "renderer: failed to release ssr: device lost")
	assert.NoError(t, releaseStage("smaa", func() {}))
}

func TestToggles(t *testing.T) {
	r := NewRenderer(backend.NewRecordingBackend(1, 1), twoMeshScene())
	assert.True(t, r.ShadowsEnabled())
	assert.True(t, r.SSREnabled())
	assert.True(t, r.SMAAEnabled())

	assert.False(t, r.ToggleSSR())
	assert.False(t, r.SSREnabled())
	assert.True(t, r.ToggleSSR())
	assert.False(t, r.ToggleSMAA())
	assert.False(t, r.ToggleShadows())

	r.SetSMAA(true)
	r.SetShadows(true)
	r.SetSSR(false)
	assert.True(t, r.SMAAEnabled())
	assert.True(t, r.ShadowsEnabled())
	assert.False(t, r.SSREnabled())
}

func TestRecompileShaders(t *testing.T) {
	r, rec := newRenderer(t, twoMeshScene())
	rec.ResetCalls()

	require.NoError(t, r.RecompileShaders())
	assert.Equal(t, len(program.Programs()), rec.Count(backend.OpCreateProgram))
	require.NoError(t, r.Render())

	assert.ErrorIs(t, NewRenderer(rec, twoMeshScene()).RecompileShaders(), ErrNotSetUp)
}

func TestProfilerTimesEveryPass(t *testing.T) {
	p := profiler.NewProfiler(profiler.WithUpdateInterval(0))
	r, _ := newRenderer(t, twoMeshScene(), WithProfiler(p))
	require.NoError(t, r.Render())

	timings := p.Timings()
	for _, section := range []string{
		SectionFrameData, SectionGBuffer, SectionAmbient, SectionPoint,
		SectionSpot, SectionSSR, SectionSMAA, SectionPresent,
	} {
		assert.Contains(t, timings, section)
	}
}
