package smaa

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/draw_pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/mesh_registry"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// smaa is the implementation of the SMAA interface.
type smaa struct {
	mu       *sync.Mutex
	backend  backend.Backend
	programs program.Manager
	states   draw_pass.StateMachine
	meshes   mesh_registry.MeshRegistry
	log      *zap.Logger

	width, height int

	edgeTex  backend.Texture
	blendTex backend.Texture
	stencil  backend.Texture
	edgeFb   backend.Framebuffer
	blendFb  backend.Framebuffer

	areaTex   backend.Texture
	searchTex backend.Texture
}

// SMAA antialiases a finished frame in three passes: luma edge detection, blending weight
// calculation against the area and search lookup tables, and neighbourhood blending onto the
// display surface. The edge and weight passes share one stencil surface so the weight pass only
// runs on edge pixels.
type SMAA interface {
	// Run antialiases input onto the display surface. Input needs mip levels; level 0 must hold the
	// frame.
	//
	// Parameters:
	//   - input: the colour texture of the finished frame
	Run(input backend.Texture)

	// ResizeBuffers reallocates the intermediate targets when the size changed.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: error if a target could not be created
	ResizeBuffers(width, height int) error

	// EdgeTexture returns the RG edge texture written by the first pass.
	EdgeTexture() backend.Texture

	// BlendTexture returns the RGBA blending weight texture written by the second pass.
	BlendTexture() backend.Texture

	// Release releases every texture and framebuffer the stage created. Safe to call twice.
	Release()
}

var _ SMAA = &smaa{}

// New creates the SMAA stage for a width x height target and uploads its lookup tables.
//
// Parameters:
//   - b: the backend to create resources on
//   - programs: the program manager holding the Edge, Blend and Resolve programs
//   - states: the pass state machine
//   - meshes: the mesh registry holding the Quad group
//   - width, height: the target size in pixels
//
// Returns:
//   - SMAA: the stage
//   - error: error if a resource could not be created
func New(b backend.Backend, programs program.Manager, states draw_pass.StateMachine, meshes mesh_registry.MeshRegistry, width, height int) (SMAA, error) {
	s := &smaa{
		mu:       &sync.Mutex{},
		backend:  b,
		programs: programs,
		states:   states,
		meshes:   meshes,
		log:      logger.Named("smaa"),
	}

	var err error
	s.areaTex, err = s.createLookup("smaa_area", wgpu.TextureFormatRG8Unorm, AreaTexture())
	if err != nil {
		return nil, err
	}
	s.searchTex, err = s.createLookup("smaa_search", wgpu.TextureFormatR8Unorm, SearchTexture())
	if err != nil {
		s.Release()
		return nil, err
	}
	if err := s.allocate(width, height); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *smaa) createLookup(label string, format wgpu.TextureFormat, data common.TextureStagingData) (backend.Texture, error) {
	tex, err := s.backend.CreateTexture(backend.TextureDescriptor{
		Label:   label,
		Width:   int(data.Width),
		Height:  int(data.Height),
		Format:  format,
		Sampler: common.LinearClamp,
	})
	if err != nil {
		return nil, fmt.Errorf("smaa: failed to create %s: %w", label, err)
	}
	s.backend.WriteTexture(tex, data)
	return tex, nil
}

// allocate creates the size dependent targets.
func (s *smaa) allocate(width, height int) error {
	width, height = max(width, 1), max(height, 1)

	var err error
	target := func(label string, format wgpu.TextureFormat) backend.Texture {
		if err != nil {
			return nil
		}
		var tex backend.Texture
		tex, err = s.backend.CreateTexture(backend.TextureDescriptor{
			Label:   label,
			Width:   width,
			Height:  height,
			Format:  format,
			Sampler: common.LinearClamp,
		})
		return tex
	}
	s.edgeTex = target("smaa_edges", wgpu.TextureFormatRGBA8Unorm)
	s.blendTex = target("smaa_blend", wgpu.TextureFormatRGBA8Unorm)
	s.stencil = target("smaa_stencil", wgpu.TextureFormatStencil8)
	if err != nil {
		s.releaseTargets()
		return fmt.Errorf("smaa: failed to create targets: %w", err)
	}

	if s.edgeFb, err = s.backend.CreateFramebuffer(backend.FramebufferDescriptor{
		Label: "smaa_edges", Color: []backend.Texture{s.edgeTex}, DepthStencil: s.stencil,
	}); err != nil {
		s.releaseTargets()
		return fmt.Errorf("smaa: failed to create edge framebuffer: %w", err)
	}
	if s.blendFb, err = s.backend.CreateFramebuffer(backend.FramebufferDescriptor{
		Label: "smaa_blend", Color: []backend.Texture{s.blendTex}, DepthStencil: s.stencil,
	}); err != nil {
		s.releaseTargets()
		return fmt.Errorf("smaa: failed to create blend framebuffer: %w", err)
	}

	s.width, s.height = width, height
	return nil
}

func (s *smaa) releaseTargets() {
	for _, r := range []backend.Resource{s.edgeFb, s.blendFb, s.edgeTex, s.blendTex, s.stencil} {
		if r != nil {
			r.Release()
		}
	}
	s.edgeFb, s.blendFb = nil, nil
	s.edgeTex, s.blendTex, s.stencil = nil, nil, nil
}

func (s *smaa) Run(input backend.Texture) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// edge detection; marks edge pixels in the stencil
	s.backend.BindFramebuffer(s.edgeFb)
	s.states.SetState(draw_pass.SMAAEdge)
	s.backend.Clear(backend.ClearTransparent)
	s.programs.UseProgram(program.Edge)
	s.programs.BindTexture(program.Input, input)
	s.backend.GenerateMipmaps(input)
	s.meshes.DrawMeshGroup(mesh_registry.Quad)

	// blending weights on marked pixels; clears the marks
	s.backend.BindFramebuffer(s.blendFb)
	s.states.SetState(draw_pass.SMAABlend)
	s.backend.Clear(backend.ClearTransparent)
	s.programs.UseProgram(program.Blend)
	s.programs.BindTexture(program.Input, s.edgeTex)
	s.programs.BindTexture(program.Area, s.areaTex)
	s.programs.BindTexture(program.Search, s.searchTex)
	s.meshes.DrawMeshGroup(mesh_registry.Quad)

	// neighbourhood blending onto the display
	s.backend.BindFramebuffer(nil)
	s.states.SetState(draw_pass.SMAAResolve)
	s.programs.UseProgram(program.Resolve)
	s.programs.BindTexture(program.Input, input)
	s.programs.BindTexture(program.Search, s.blendTex)
	s.meshes.DrawMeshGroup(mesh_registry.Quad)

	s.programs.UnbindTexture(program.Input)
	s.programs.UnbindTexture(program.Search)
}

func (s *smaa) ResizeBuffers(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	width, height = max(width, 1), max(height, 1)
	if width == s.width && height == s.height {
		return nil
	}
	s.log.Debug("resizing buffers", zap.Int("width", width), zap.Int("height", height))
	s.releaseTargets()
	return s.allocate(width, height)
}

func (s *smaa) EdgeTexture() backend.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edgeTex
}

func (s *smaa) BlendTexture() backend.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blendTex
}

func (s *smaa) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseTargets()
	if s.areaTex != nil {
		s.areaTex.Release()
		s.areaTex = nil
	}
	if s.searchTex != nil {
		s.searchTex.Release()
		s.searchTex = nil
	}
	s.width, s.height = 0, 0
}
