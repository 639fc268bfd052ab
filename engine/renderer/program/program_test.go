package program

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overrideLoader serves replaced files and falls back to the embedded sources.
type overrideLoader map[string]string

func (o overrideLoader) Load(name string) (string, error) {
	if src, ok := o[name]; ok {
		return src, nil
	}
	return EmbeddedLoader().Load(name)
}

func newManager(t *testing.T, opts ...ManagerBuilderOption) (Manager, backend.Recorder) {
	t.Helper()
	rec := backend.NewRecordingBackend(64, 64)
	return NewManager(rec, opts...), rec
}

func TestEveryProgramCompiles(t *testing.T) {
	m, rec := newManager(t)

	assert.Equal(t, len(Programs()), rec.Count(backend.OpCreateProgram))
	for _, p := range Programs() {
		prog := m.Program(p)
		require.NotNil(t, prog, p.String())
		assert.Equal(t, p.String(), prog.Label())
	}
	assert.Nil(t, m.Program(Shadows).FragmentShader())
	assert.Nil(t, m.Program(NoProgram))
}

func TestUniformBindingsMatchBlockSizes(t *testing.T) {
	m, _ := newManager(t)

	for _, p := range Programs() {
		prog := m.Program(p)
		for _, s := range []shader.Shader{prog.VertexShader(), prog.FragmentShader()} {
			if s == nil {
				continue
			}
			layout, ok := s.BindGroupLayoutDescriptors()[shader.UniformGroup]
			if !ok {
				continue
			}
			for _, e := range layout.Entries {
				block := UniformBlock(e.Binding)
				require.Less(t, int(block), int(blockCount), "%s binds slot %d", s.Key(), e.Binding)
				assert.Equal(t, wgpu.BufferBindingTypeUniform, e.Buffer.Type)
				assert.Equal(t, block.Size(), e.Buffer.MinBindingSize, "%s: %s", s.Key(), block)
			}
		}
	}
}

func TestTextureBindingsFollowSlots(t *testing.T) {
	m, _ := newManager(t)

	fs := m.Program(SpotShadow).FragmentShader()
	layout := fs.BindGroupLayoutDescriptors()[shader.TextureGroup]

	var sawShadow bool
	for _, e := range layout.Entries {
		slot := TextureSlot(e.Binding / 2)
		assert.Contains(t, DescriptorOf(SpotShadow).Slots, slot)
		if slot == ShadowMap {
			sawShadow = true
			if e.Binding%2 == 0 {
				assert.Equal(t, wgpu.TextureSampleTypeDepth, e.Texture.SampleType)
			} else {
				assert.Equal(t, wgpu.SamplerBindingTypeComparison, e.Sampler.Type)
			}
		}
		if slot == Material && e.Binding%2 == 0 {
			assert.Equal(t, wgpu.TextureSampleTypeUint, e.Texture.SampleType)
		}
	}
	assert.True(t, sawShadow)
}

func TestVertexInputs(t *testing.T) {
	m, _ := newManager(t)

	locations := func(p ProgramID) []uint32 {
		var out []uint32
		for _, a := range m.Program(p).VertexShader().VertexAttributes() {
			out = append(out, a.ShaderLocation)
		}
		return out
	}
	assert.Equal(t, []uint32{0, 1, backend.InstanceLocation}, locations(GBuffer))
	assert.Equal(t, []uint32{0, backend.InstanceLocation}, locations(Shadows))
	assert.Equal(t, []uint32{0}, locations(PointLight))
	assert.Equal(t, []uint32{0, 2}, locations(Ambient))
	assert.Equal(t, []uint32{0, 2}, locations(Resolve))
}

func TestUseProgramSkipsRepeats(t *testing.T) {
	m, rec := newManager(t)

	m.UseProgram(GBuffer)
	m.UseProgram(GBuffer)
	m.UseProgram(NoProgram)
	m.UseProgram(Ambient)
	m.UseProgram(Ambient)

	calls := rec.CallsOf(backend.OpUseProgram)
	require.Len(t, calls, 2)
	assert.Equal(t, "gbuffer", calls[0].Label)
	assert.Equal(t, "ambient", calls[1].Label)
	assert.Equal(t, Ambient, m.Current())
}

func TestUseUnknownProgramPanics(t *testing.T) {
	m, _ := newManager(t)
	assert.Panics(t, func() { m.UseProgram(ProgramID(42)) })
	assert.Panics(t, func() { m.UseProgram(ProgramID(-1)) })
	assert.Panics(t, func() { DescriptorOf(NoProgram) })
}

func TestCreateUniformBlocksBindsEachSlotOnce(t *testing.T) {
	m, rec := newManager(t)
	require.NoError(t, m.CreateUniformBlocks())

	binds := rec.CallsOf(backend.OpBindUniformBuffer)
	require.Len(t, binds, len(UniformBlocks()))
	for i, b := range UniformBlocks() {
		assert.Equal(t, int(b), binds[i].Slot)
		assert.Equal(t, b.WGSLType(), binds[i].Label)
		assert.Equal(t, b.Size(), m.UniformBuffer(b).Size())
	}
}

func TestUploadSkipsIdenticalPayloads(t *testing.T) {
	m, rec := newManager(t)
	require.NoError(t, m.CreateUniformBlocks())
	rec.ResetCalls()

	a := make([]byte, GPUViewportSize)
	b := make([]byte, GPUViewportSize)
	b[0] = 1

	m.Upload(Viewport, a)
	m.Upload(Viewport, a)
	m.Upload(Viewport, b)
	m.Upload(Viewport, a)
	m.Upload(Shadow, a)

	writes := rec.CallsOf(backend.OpWriteBuffer)
	require.Len(t, writes, 4)
	assert.Equal(t, a, rec.Contents(m.UniformBuffer(Viewport)))
}

func TestUploadBeforeBlocksPanics(t *testing.T) {
	m, _ := newManager(t)
	assert.Panics(t, func() { m.Upload(Frame, []byte{0}) })
}

func TestBindAndUnbindTexture(t *testing.T) {
	m, rec := newManager(t)
	tex, err := rec.CreateTexture(backend.TextureDescriptor{Label: "colour", Width: 4, Height: 4, Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)

	m.BindTexture(Input, tex)
	m.UnbindTexture(Input)

	binds := rec.CallsOf(backend.OpBindTexture)
	require.Len(t, binds, 2)
	assert.Equal(t, int(Input), binds[0].Slot)
	assert.Equal(t, "colour", binds[0].Label)
	assert.Equal(t, "", binds[1].Label)
	assert.Panics(t, func() { m.BindTexture(Empty, tex) })
}

func TestRecompileShadersRebuildsPrograms(t *testing.T) {
	m, rec := newManager(t)
	m.UseProgram(SSR)
	old := m.Program(SSR)
	live := rec.Live()

	require.NoError(t, m.RecompileShaders())

	assert.Equal(t, 2*len(Programs()), rec.Count(backend.OpCreateProgram))
	assert.Equal(t, live, rec.Live())
	assert.NotEqual(t, old.ID(), m.Program(SSR).ID())
	assert.Equal(t, NoProgram, m.Current())

	rec.ResetCalls()
	m.UseProgram(SSR)
	assert.Equal(t, 1, rec.Count(backend.OpUseProgram))
}

func TestRecompileFailureKeepsPrograms(t *testing.T) {
	loader := overrideLoader{}
	m, rec := newManager(t, WithSourceLoader(loader))
	old := m.Program(Ambient)
	live := rec.Live()

	loader["ambient_fs.wgsl"] = "fn not_an_entry_point() {}"
	err := m.RecompileShaders()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambient")

	assert.Equal(t, old.ID(), m.Program(Ambient).ID())
	assert.Equal(t, live, rec.Live())
}

func TestUndeclaredBlockIsACompileError(t *testing.T) {
	src, err := EmbeddedLoader().Load("smaa_edge_vs.wgsl")
	require.NoError(t, err)
	loader := overrideLoader{"smaa_edge_vs.wgsl": "//@oxy:uniform Frame frame\n" + src}

	rec := backend.NewRecordingBackend(64, 64)
	assert.PanicsWithValue(t,
		"program: failed to compile shader programs: smaa_edge: declares uniform blocks [Frame Viewport], expected [Viewport]",
		func() { NewManager(rec, WithSourceLoader(loader)) })
}

func TestReleaseFreesEverything(t *testing.T) {
	m, rec := newManager(t)
	require.NoError(t, m.CreateUniformBlocks())
	require.Positive(t, rec.Live())

	m.Release()
	assert.Zero(t, rec.Live())
	m.Release()
	assert.Zero(t, rec.Live())
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad_vs.wgsl"), []byte("// edited"), 0o644))

	l := DirLoader(dir)
	src, err := l.Load("quad_vs.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "// edited", src)

	_, err = l.Load("missing.wgsl")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), dir))
}

func TestGPUStructSizes(t *testing.T) {
	var pf GPUPerFrame
	var st GPUStatic
	assert.Equal(t, GPUPerFrameSize, pf.Size())
	assert.Equal(t, GPUStaticSize, st.Size())
	assert.Equal(t, uint64(light.GPULightSize), Light.Size())
}

func TestPerFrameMarshal(t *testing.T) {
	var pf GPUPerFrame
	pf.Instances[1].ModelTransform = mgl32.Translate3D(1, 2, 3)
	pf.Instances[1].MaterialIndex = 7
	pf.ViewProjection = mgl32.Ident4()
	pf.EyePosition = [3]float32{4, 5, 6}

	buf := pf.Marshal()
	require.Len(t, buf, GPUPerFrameSize)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[GPUInstanceSize+64:]))
	assert.Equal(t, mgl32.Ident4(), mat4At(buf, MaxInstances*GPUInstanceSize))
	assert.Equal(t, float32(5), f32At(buf, MaxInstances*GPUInstanceSize+68))
}

func TestStaticMarshal(t *testing.T) {
	table, err := material.NewTable([]scene.Material{{ID: 1, Shininess: 9}})
	require.NoError(t, err)
	global := light.GPUGlobalLight{AmbientIntensity: [3]float32{0.2, 0.2, 0.2}}

	s := NewGPUStatic(table, global)
	buf := s.Marshal()
	require.Len(t, buf, GPUStaticSize)
	assert.Equal(t, float32(9), f32At(buf, 12))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[material.GPUMaterialSize+28:]))
	assert.Equal(t, float32(0.2), f32At(buf, material.MaxMaterials*material.GPUMaterialSize))
}

func TestViewport(t *testing.T) {
	v := NewGPUViewport(800, 400)
	assert.Equal(t, float32(1.0/800), v.PixelWidth)
	assert.Equal(t, float32(400), v.ScreenHeight)
	assert.Equal(t, float32(1.0/400), f32At(v.Marshal(), 4))
}

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func mat4At(buf []byte, off int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = f32At(buf, off+4*i)
	}
	return m
}
