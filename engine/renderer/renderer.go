package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/draw_pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/mesh_registry"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/smaa"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/ssr"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Defaults of the designated reflective surface.
const (
	DefaultReflectiveMeshID     uint32 = 311
	DefaultReflectiveMaterialID uint32 = material.DefaultReflectiveID
)

// Profiler section names.
const (
	SectionFrameData = "frame_data"
	SectionGBuffer   = "gbuffer"
	SectionAmbient   = "ambient"
	SectionPoint     = "point_lights"
	SectionSpot      = "spot_lights"
	SectionSSR       = "ssr"
	SectionSMAA      = "smaa"
	SectionPresent   = "present"
)

// ErrInstanceOverflow is returned by Setup when the scene holds more instances than the per-frame
// uniform block can address.
var ErrInstanceOverflow = errors.New("renderer: too many instances")

// ErrNotSetUp is returned by operations that need Setup to have run.
var ErrNotSetUp = errors.New("renderer: not set up")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu       *sync.Mutex
	backend  backend.Backend
	scene    scene.Scene
	log      *zap.Logger
	profiler profiler.Profiler
	loader   program.SourceLoader

	// options
	shadows              bool
	ssrEnabled           bool
	smaaEnabled          bool
	lightCulling         bool
	shadowResolution     int
	reflectiveMeshID     uint32
	reflectiveMaterialID uint32
	workers              int

	width, height    int
	aspect           float32
	ready            bool
	overflowWarned   bool
	materialsVersion uint64
	geometryVersion  uint64

	states    draw_pass.StateMachine
	meshes    mesh_registry.MeshRegistry
	materials material.Table
	programs  program.Manager
	gbuffer   framebuffer.GBuffer
	lbuffer   framebuffer.LBuffer
	shadowMap framebuffer.ShadowMap
	ssr       ssr.SSR
	smaa      smaa.SMAA
	frame     *frameData
}

// Renderer is the deferred frame orchestrator. It owns every resource of the pipeline and renders
// a scene in a fixed order: geometry, ambient, point lights, spot lights with optional shadows,
// then the optional reflection and antialiasing post-processes.
//
// The Renderer talks to the GPU only through a backend.Backend, so it runs unchanged on the WebGPU
// backend and on the recording backend used in tests.
type Renderer interface {
	// Setup creates every GPU resource for a width x height surface and uploads the static and
	// viewport data. Shader compile failures and incomplete framebuffers are fatal.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: ErrInstanceOverflow (wrapped) if the scene holds more than program.MaxInstances
	//     instances, or an error if a resource could not be created
	Setup(width, height int) error

	// Resize reconfigures the surface and every size dependent target. Repeating the current size
	// allocates nothing.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrNotSetUp before Setup. A target that cannot be reallocated is fatal and panics.
	Resize(width, height int) error

	// Render draws one frame of the scene and presents it.
	//
	// Returns:
	//   - error: ErrNotSetUp before Setup, backend.ErrSurfaceLost (wrapped) if the surface could not
	//     be acquired, or an error if the frame could not be submitted
	Render() error

	// Teardown releases every resource the renderer created. The renderer can be set up again
	// afterwards.
	//
	// Returns:
	//   - error: every release failure, combined
	Teardown() error

	// RecompileShaders reloads every shader source and rebuilds the programs. On failure the old
	// programs stay in use.
	//
	// Returns:
	//   - error: ErrNotSetUp before Setup, or the compile error
	RecompileShaders() error

	// ToggleShadows flips spot light shadows.
	//
	// Returns:
	//   - bool: the new state
	ToggleShadows() bool

	// ToggleSSR flips the reflection post-process.
	//
	// Returns:
	//   - bool: the new state
	ToggleSSR() bool

	// ToggleSMAA flips the antialiasing post-process.
	//
	// Returns:
	//   - bool: the new state
	ToggleSMAA() bool

	// SetShadows enables or disables spot light shadows.
	SetShadows(enabled bool)

	// SetSSR enables or disables the reflection post-process.
	SetSSR(enabled bool)

	// SetSMAA enables or disables the antialiasing post-process.
	SetSMAA(enabled bool)

	// ShadowsEnabled reports whether spot light shadows are rendered.
	ShadowsEnabled() bool

	// SSREnabled reports whether the reflection post-process runs.
	SSREnabled() bool

	// SMAAEnabled reports whether the antialiasing post-process runs.
	SMAAEnabled() bool

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Size returns the surface size the renderer was set up or resized to.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (int, int)
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer for a scene. No GPU resource is created before Setup.
//
// Parameters:
//   - b: the backend to render through
//   - s: the scene to render
//   - opts: a variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(b backend.Backend, s scene.Scene, opts ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:                   &sync.Mutex{},
		backend:              b,
		scene:                s,
		log:                  logger.Named("renderer"),
		shadows:              true,
		ssrEnabled:           true,
		smaaEnabled:          true,
		shadowResolution:     framebuffer.DefaultShadowResolution,
		reflectiveMeshID:     DefaultReflectiveMeshID,
		reflectiveMaterialID: DefaultReflectiveMaterialID,
		workers:              runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *renderer) Setup(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return fmt.Errorf("renderer: already set up")
	}
	if n := len(r.scene.Instances()); n > program.MaxInstances {
		return fmt.Errorf("%w: %d instances, at most %d", ErrInstanceOverflow, n, program.MaxInstances)
	}

	width, height = max(width, 1), max(height, 1)
	r.backend.ConfigureSurface(width, height)
	r.backend.SetViewport(0, 0, width, height)
	r.width, r.height = width, height
	r.aspect = float32(width) / float32(height)

	var err error
	if r.gbuffer, err = framebuffer.NewGBuffer(r.backend, width, height); err == nil {
		if r.lbuffer, err = framebuffer.NewLBuffer(r.backend, r.gbuffer); err == nil {
			r.shadowMap, err = framebuffer.NewShadowMap(r.backend, r.shadowResolution)
		}
	}
	if err != nil {
		r.log.Error("failed to create framebuffers", zap.Error(err))
		panic(fmt.Sprintf("renderer: failed to create framebuffers: %v", err))
	}

	r.states = draw_pass.NewStateMachine(r.backend)
	r.meshes = mesh_registry.NewMeshRegistry(r.backend)
	if err := r.meshes.Build(r.scene); err != nil {
		r.release()
		return fmt.Errorf("renderer: failed to build meshes: %w", err)
	}
	r.geometryVersion = r.scene.GeometryVersion()

	r.materials, err = material.NewTable(r.scene.Materials(), material.WithReflectiveID(r.reflectiveMaterialID))
	if err != nil {
		r.release()
		return fmt.Errorf("renderer: failed to build material table: %w", err)
	}
	r.materialsVersion = r.scene.MaterialsVersion()

	var programOpts []program.ManagerBuilderOption
	if r.loader != nil {
		programOpts = append(programOpts, program.WithSourceLoader(r.loader))
	}
	r.programs = program.NewManager(r.backend, programOpts...)
	if err := r.programs.CreateUniformBlocks(); err != nil {
		r.release()
		return fmt.Errorf("renderer: failed to create uniform blocks: %w", err)
	}

	if r.ssr, err = ssr.New(r.backend, r.programs, r.states, r.meshes, width, height); err == nil {
		r.smaa, err = smaa.New(r.backend, r.programs, r.states, r.meshes, width, height)
	}
	if err != nil {
		r.log.Error("failed to create post-process targets", zap.Error(err))
		panic(fmt.Sprintf("renderer: failed to create post-process targets: %v", err))
	}

	if r.frame == nil {
		r.frame = newFrameData(r.workers)
	}
	r.uploadStatic()
	r.uploadViewport()

	r.ready = true
	r.log.Info("renderer ready",
		zap.String("scene", r.scene.Name()),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("instances", len(r.scene.Instances())),
		zap.Int("materials", r.materials.Len()),
	)
	return nil
}

func (r *renderer) uploadStatic() {
	global := light.NewGPUGlobalLight(r.scene.AmbientIntensity(), r.scene.DirectionalLights())
	static := program.NewGPUStatic(r.materials, global)
	r.programs.Upload(program.Static, static.Marshal())
}

func (r *renderer) uploadViewport() {
	viewport := program.NewGPUViewport(r.width, r.height)
	r.programs.Upload(program.Viewport, viewport.Marshal())
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return ErrNotSetUp
	}
	width, height = max(width, 1), max(height, 1)
	if width == r.width && height == r.height {
		return nil
	}

	r.backend.ConfigureSurface(width, height)
	r.backend.SetViewport(0, 0, width, height)
	r.width, r.height = width, height
	r.aspect = float32(width) / float32(height)
	r.uploadViewport()

	_, err := r.gbuffer.Resize(width, height)
	if err == nil {
		_, err = r.lbuffer.Sync()
	}
	if err == nil {
		err = r.ssr.Resize(width, height)
	}
	if err == nil {
		err = r.smaa.ResizeBuffers(width, height)
	}
	if err != nil {
		// some targets are already released, nothing may draw through them
		r.ready = false
		r.log.Error("failed to resize framebuffers", zap.Error(err), zap.Int("width", width), zap.Int("height", height))
		panic(fmt.Sprintf("renderer: failed to resize framebuffers: %v", err))
	}
	r.log.Debug("resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (r *renderer) Render() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return ErrNotSetUp
	}
	if err := r.backend.BeginFrame(); err != nil {
		return fmt.Errorf("renderer: failed to begin frame: %w", err)
	}
	// the backend may have been driven by someone else since the last frame
	r.states.Reset()
	r.meshes.Reset()

	r.start(SectionFrameData)
	frustum, err := r.uploadFrameData()
	r.stop(SectionFrameData)
	if err != nil {
		return multierr.Append(err, r.backend.EndFrame())
	}

	r.start(SectionGBuffer)
	r.geometryPass()
	r.stop(SectionGBuffer)

	r.start(SectionAmbient)
	r.ambientPass()
	r.stop(SectionAmbient)

	r.start(SectionPoint)
	r.pointLightPass(frustum)
	r.stop(SectionPoint)

	r.start(SectionSpot)
	r.spotLightPass(frustum)
	r.stop(SectionSpot)

	color, target := r.lbuffer.Color(), r.lbuffer.Framebuffer()
	if r.ssrEnabled {
		r.start(SectionSSR)
		out := r.ssr.Run(ssr.Input{Color: color, Depth: r.gbuffer.DepthStencil(), Framebuffer: target})
		color, target = out.Color, out.Framebuffer
		r.stop(SectionSSR)
	}

	if r.smaaEnabled {
		r.start(SectionSMAA)
		r.smaa.Run(color)
		r.stop(SectionSMAA)
	} else {
		r.backend.BlitFramebuffer(target, nil)
	}

	r.start(SectionPresent)
	err = r.backend.EndFrame()
	r.stop(SectionPresent)
	if err != nil {
		return fmt.Errorf("renderer: failed to end frame: %w", err)
	}
	if r.profiler != nil {
		r.profiler.Tick()
	}
	return nil
}

// uploadFrameData uploads the static and per-frame blocks and returns the camera frustum.
func (r *renderer) uploadFrameData() (common.Frustum, error) {
	if v := r.scene.MaterialsVersion(); v != r.materialsVersion {
		if err := r.materials.Rebuild(r.scene.Materials()); err != nil {
			return common.Frustum{}, fmt.Errorf("renderer: failed to rebuild material table: %w", err)
		}
		r.materialsVersion = v
		r.log.Debug("material table rebuilt", zap.Int("materials", r.materials.Len()))
	}
	// identical payloads are skipped by the upload
	r.uploadStatic()

	if v := r.scene.GeometryVersion(); v != r.geometryVersion {
		if err := r.meshes.BuildSceneGroup(r.scene.Meshes(), r.instanceCounter()); err != nil {
			return common.Frustum{}, fmt.Errorf("renderer: failed to rebuild scene meshes: %w", err)
		}
		r.geometryVersion = v
	}

	instances := r.scene.Instances()
	if len(instances) > program.MaxInstances && !r.overflowWarned {
		r.log.Warn("instances beyond the per-frame limit are not drawn",
			zap.Int("instances", len(instances)),
			zap.Int("limit", program.MaxInstances),
		)
		r.overflowWarned = true
	}

	cam := r.scene.Camera()
	viewProjection := cam.ViewProjection(r.aspect, r.scene.UpDirection())
	data, err := r.frame.prepare(instances, r.resolveMaterial, viewProjection, cam.Position())
	if err != nil {
		r.log.Error("failed to prepare frame data", zap.Error(err))
		panic(err.Error())
	}
	r.programs.Upload(program.Frame, data)
	return common.ExtractFrustum(viewProjection), nil
}

// instanceCounter counts scene instances per mesh, handing out at most MaxInstances in mesh
// order so batched instance ids stay within the per-frame array.
func (r *renderer) instanceCounter() mesh_registry.InstanceCounter {
	remaining := program.MaxInstances
	return func(meshID uint32) int {
		n := min(r.scene.InstanceCount(meshID), remaining)
		remaining -= n
		return n
	}
}

// resolveMaterial maps an instance to its dense material index. The designated reflective mesh
// always uses the reflective material.
func (r *renderer) resolveMaterial(inst scene.Instance) (uint32, bool) {
	if inst.MeshID == r.reflectiveMeshID {
		return r.materials.ReflectiveIndex(), true
	}
	if !r.materials.Contains(inst.MaterialID) {
		return 0, false
	}
	return r.materials.Index(inst.MaterialID), true
}

func (r *renderer) geometryPass() {
	r.backend.BindFramebuffer(r.gbuffer.Framebuffer())
	r.states.SetState(draw_pass.GBuffer)
	r.backend.Clear(backend.ClearDepth | backend.ClearStencil)
	r.programs.UseProgram(program.GBuffer)
	r.meshes.DrawMeshGroup(mesh_registry.Scene)
}

func (r *renderer) ambientPass() {
	r.programs.BindTexture(program.Position, r.gbuffer.Position())
	r.programs.BindTexture(program.Normal, r.gbuffer.Normal())
	r.programs.BindTexture(program.Material, r.gbuffer.Material())
	r.backend.BindFramebuffer(r.lbuffer.Framebuffer())
	r.states.SetState(draw_pass.Ambient)
	r.backend.Clear(backend.ClearColor)
	r.programs.UseProgram(program.Ambient)
	r.meshes.DrawMeshGroup(mesh_registry.Quad)
}

// lit reports whether a light contributes to this frame.
func (r *renderer) lit(l light.Light, frustum common.Frustum) bool {
	if !l.Enabled() {
		return false
	}
	return !r.lightCulling || light.Visible(l, frustum)
}

func (r *renderer) uploadLight(l light.Light) {
	data := light.NewGPULight(l)
	r.programs.Upload(program.Light, data.Marshal())
}

// shadeVolume marks the light volume in the stencil, then shades the marked pixels.
func (r *renderer) shadeVolume(group mesh_registry.MeshGroup) {
	r.states.SetState(draw_pass.LightStencil)
	r.meshes.DrawMeshGroup(group)
	r.states.SetState(draw_pass.LightShading)
	r.meshes.DrawMeshGroup(group)
}

func (r *renderer) pointLightPass(frustum common.Frustum) {
	r.programs.UseProgram(program.PointLight)
	for _, l := range r.scene.PointLights() {
		if !r.lit(l, frustum) {
			continue
		}
		r.uploadLight(l)
		r.shadeVolume(mesh_registry.Sphere)
	}
}

func (r *renderer) spotLightPass(frustum common.Frustum) {
	for _, l := range r.scene.SpotLights() {
		if !r.lit(l, frustum) {
			continue
		}
		r.uploadLight(l)
		if r.shadows && l.CastsShadows() {
			r.shadowPass(l)
			r.programs.UseProgram(program.SpotShadow)
		} else {
			r.programs.UseProgram(program.SpotLight)
		}
		r.shadeVolume(mesh_registry.Cone)
	}
}

// shadowPass renders the scene depth from a spot light into the shadow map, then returns to the
// light buffer with the map bound for sampling.
func (r *renderer) shadowPass(l light.Light) {
	shadow := light.GPUShadow{ViewProjection: light.ShadowViewProjection(l, r.scene.UpDirection())}
	r.programs.Upload(program.Shadow, shadow.Marshal())

	r.programs.UseProgram(program.Shadows)
	r.backend.BindFramebuffer(r.shadowMap.Framebuffer())
	r.states.SetState(draw_pass.ShadowMap)
	// the map cannot be sampled while it is the render target
	r.programs.UnbindTexture(program.ShadowMap)
	r.backend.Clear(backend.ClearDepth)
	res := r.shadowMap.Resolution()
	r.backend.SetViewport(0, 0, res, res)
	r.meshes.DrawMeshGroup(mesh_registry.Scene)
	r.backend.SetViewport(0, 0, r.width, r.height)

	r.programs.BindTexture(program.ShadowMap, r.shadowMap.Depth())
	r.backend.BindFramebuffer(r.lbuffer.Framebuffer())
}

func (r *renderer) start(section string) {
	if r.profiler != nil {
		r.profiler.Start(section)
	}
}

func (r *renderer) stop(section string) {
	if r.profiler != nil {
		r.profiler.Stop(section)
	}
}

func (r *renderer) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.release()
	r.ready = false
	r.overflowWarned = false
	r.log.Info("renderer torn down", zap.Error(err))
	return err
}

// release releases every owned resource in reverse creation order and forgets it.
func (r *renderer) release() error {
	var err error
	if r.smaa != nil {
		err = multierr.Append(err, releaseStage("smaa", r.smaa.Release))
		r.smaa = nil
	}
	if r.ssr != nil {
		err = multierr.Append(err, releaseStage("ssr", r.ssr.Release))
		r.ssr = nil
	}
	if r.programs != nil {
		err = multierr.Append(err, releaseStage("programs", r.programs.Release))
		r.programs = nil
	}
	if r.meshes != nil {
		err = multierr.Append(err, releaseStage("meshes", r.meshes.Release))
		r.meshes = nil
	}
	if r.shadowMap != nil {
		err = multierr.Append(err, releaseStage("shadow map", r.shadowMap.Release))
		r.shadowMap = nil
	}
	if r.lbuffer != nil {
		err = multierr.Append(err, releaseStage("lbuffer", r.lbuffer.Release))
		r.lbuffer = nil
	}
	if r.gbuffer != nil {
		err = multierr.Append(err, releaseStage("gbuffer", r.gbuffer.Release))
		r.gbuffer = nil
	}
	r.states = nil
	r.materials = nil
	return err
}

// releaseStage runs a release function, turning a panic raised by the GPU binding into an error
// so one failing stage does not leak the others.
func releaseStage(name string, release func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer: failed to release %s: %v", name, rec)
		}
	}()
	release()
	return nil
}

func (r *renderer) RecompileShaders() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return ErrNotSetUp
	}
	if err := r.programs.RecompileShaders(); err != nil {
		r.log.Warn("shader recompile failed, keeping the previous programs", zap.Error(err))
		return err
	}
	r.log.Info("shaders recompiled")
	return nil
}

func (r *renderer) ToggleShadows() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shadows = !r.shadows
	return r.shadows
}

func (r *renderer) ToggleSSR() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ssrEnabled = !r.ssrEnabled
	return r.ssrEnabled
}

func (r *renderer) ToggleSMAA() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.smaaEnabled = !r.smaaEnabled
	return r.smaaEnabled
}

func (r *renderer) SetShadows(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shadows = enabled
}

func (r *renderer) SetSSR(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ssrEnabled = enabled
}

func (r *renderer) SetSMAA(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.smaaEnabled = enabled
}

func (r *renderer) ShadowsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shadows
}

func (r *renderer) SSREnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ssrEnabled
}

func (r *renderer) SMAAEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.smaaEnabled
}

func (r *renderer) Scene() scene.Scene {
	return r.scene
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}
