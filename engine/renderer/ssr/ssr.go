package ssr

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/draw_pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/mesh_registry"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Input is the frame a reflection pass reads: the lit colour, the scene depth and the framebuffer
// holding the colour.
type Input struct {
	Color       backend.Texture
	Depth       backend.Texture
	Framebuffer backend.Framebuffer
}

// Output is the frame a reflection pass wrote.
type Output struct {
	Color       backend.Texture
	Framebuffer backend.Framebuffer
}

// ssr is the implementation of the SSR interface.
type ssr struct {
	mu       *sync.Mutex
	backend  backend.Backend
	programs program.Manager
	states   draw_pass.StateMachine
	meshes   mesh_registry.MeshRegistry
	log      *zap.Logger

	width, height int
	output        backend.Texture
	framebuffer   backend.Framebuffer
}

// SSR adds screen space reflections to shiny surfaces. It copies its input into its own target and
// additively blends the reflected colour on top, leaving the input untouched.
type SSR interface {
	// Run reflects in into the output target. The geometry buffer textures must be bound to their
	// slots.
	//
	// Parameters:
	//   - in: the frame to reflect
	//
	// Returns:
	//   - Output: the reflected frame, valid until the next Resize
	Run(in Input) Output

	// Resize reallocates the output target when the size changed.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: error if the target could not be created
	Resize(width, height int) error

	// Release releases the output texture and framebuffer. Safe to call twice.
	Release()
}

var _ SSR = &ssr{}

// New creates the reflection pass for a width x height target.
//
// Parameters:
//   - b: the backend to create the target on
//   - programs: the program manager holding the SSR program
//   - states: the pass state machine
//   - meshes: the mesh registry holding the Quad group
//   - width, height: the target size in pixels
//
// Returns:
//   - SSR: the pass
//   - error: error if the target could not be created
func New(b backend.Backend, programs program.Manager, states draw_pass.StateMachine, meshes mesh_registry.MeshRegistry, width, height int) (SSR, error) {
	s := &ssr{
		mu:       &sync.Mutex{},
		backend:  b,
		programs: programs,
		states:   states,
		meshes:   meshes,
		log:      logger.Named("ssr"),
	}
	if err := s.allocate(width, height); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ssr) allocate(width, height int) error {
	width, height = max(width, 1), max(height, 1)
	tex, err := s.backend.CreateTexture(backend.TextureDescriptor{
		Label:     "ssr_output",
		Width:     width,
		Height:    height,
		Format:    wgpu.TextureFormatRGBA8Unorm,
		MipLevels: framebuffer.MipLevels(width, height),
		Sampler:   common.LinearClamp,
	})
	if err != nil {
		return fmt.Errorf("ssr: failed to create output: %w", err)
	}
	fb, err := s.backend.CreateFramebuffer(backend.FramebufferDescriptor{
		Label: "ssr_output",
		Color: []backend.Texture{tex},
	})
	if err != nil {
		tex.Release()
		return fmt.Errorf("ssr: failed to create output framebuffer: %w", err)
	}
	s.output, s.framebuffer = tex, fb
	s.width, s.height = width, height
	return nil
}

func (s *ssr) release() {
	if s.framebuffer != nil {
		s.framebuffer.Release()
		s.framebuffer = nil
	}
	if s.output != nil {
		s.output.Release()
		s.output = nil
	}
	s.width, s.height = 0, 0
}

func (s *ssr) Run(in Input) Output {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.programs.BindTexture(program.Input, in.Color)
	s.programs.BindTexture(program.Search, in.Depth)
	s.programs.UseProgram(program.SSR)
	s.states.SetState(draw_pass.SSR)

	s.backend.BlitFramebuffer(in.Framebuffer, s.framebuffer)
	s.backend.BindFramebuffer(s.framebuffer)
	s.meshes.DrawMeshGroup(mesh_registry.Quad)

	return Output{Color: s.output, Framebuffer: s.framebuffer}
}

func (s *ssr) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	width, height = max(width, 1), max(height, 1)
	if width == s.width && height == s.height {
		return nil
	}
	s.log.Debug("resizing output", zap.Int("width", width), zap.Int("height", height))
	s.release()
	return s.allocate(width, height)
}

func (s *ssr) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}
