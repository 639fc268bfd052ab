package program

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// sharedSnippets are the loader files registered as @oxy:include snippets, keyed by snippet name.
var sharedSnippets = map[string]string{
	prefixStructures: "structures.wgsl",
	prefixSMAA:       "smaa.wgsl",
	"lighting":       "lighting.wgsl",
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu      *sync.Mutex
	backend backend.Backend
	loader  SourceLoader
	log     *zap.Logger

	programs [programCount]backend.Program
	current  ProgramID

	uniforms [blockCount]backend.Buffer
	hashes   [blockCount]uint64
	written  [blockCount]bool
}

// Manager compiles the shader programs and binds programs, uniform blocks and textures for the
// frame orchestrator. It remembers the current program so repeated selections reach the backend once.
type Manager interface {
	// UseProgram selects the program of subsequent draws. Selecting the current program or
	// NoProgram does nothing; an unknown program panics.
	//
	// Parameters:
	//   - p: the program
	UseProgram(p ProgramID)

	// Current returns the selected program, NoProgram before the first selection.
	//
	// Returns:
	//   - ProgramID: the current program
	Current() ProgramID

	// Program returns the compiled backend program of an id, nil for NoProgram.
	//
	// Parameters:
	//   - p: the program
	//
	// Returns:
	//   - backend.Program: the compiled program
	Program(p ProgramID) backend.Program

	// CreateUniformBlocks creates one buffer per uniform block, sized from its GPU struct, and
	// binds each to its slot. Buffers created by an earlier call are released first.
	//
	// Returns:
	//   - error: an error if a buffer could not be created
	CreateUniformBlocks() error

	// UniformBuffer returns the buffer of a uniform block, nil before CreateUniformBlocks.
	//
	// Parameters:
	//   - block: the uniform block
	//
	// Returns:
	//   - backend.Buffer: the block's buffer
	UniformBuffer(block UniformBlock) backend.Buffer

	// Upload writes a block's data. A payload identical to the block's previous upload is
	// skipped. Uploading before CreateUniformBlocks panics.
	//
	// Parameters:
	//   - block: the uniform block
	//   - data: the marshalled block, at most block.Size() bytes
	Upload(block UniformBlock, data []byte)

	// BindTexture attaches a texture to a texture slot.
	//
	// Parameters:
	//   - slot: the texture slot
	//   - tex: the texture
	BindTexture(slot TextureSlot, tex backend.Texture)

	// UnbindTexture detaches whatever is bound to a texture slot.
	//
	// Parameters:
	//   - slot: the texture slot
	UnbindTexture(slot TextureSlot)

	// RecompileShaders reloads every source and rebuilds every program, then releases the old
	// programs and forgets the current one. On failure the old programs stay in use.
	//
	// Returns:
	//   - error: the compile error, if any
	RecompileShaders() error

	// Release releases the programs and the uniform buffers.
	Release()
}

var _ Manager = &manager{}

// NewManager compiles every program. A compile or link failure is logged and panics.
//
// Parameters:
//   - b: the backend programs are created on
//   - opts: a variadic list of ManagerBuilderOption functions
//
// Returns:
//   - Manager: the program manager
func NewManager(b backend.Backend, opts ...ManagerBuilderOption) Manager {
	m := &manager{
		mu:      &sync.Mutex{},
		backend: b,
		loader:  EmbeddedLoader(),
		log:     logger.Named("program"),
	}
	for _, opt := range opts {
		opt(m)
	}

	programs, err := m.compileAll()
	if err != nil {
		m.log.Error("shader compilation failed", zap.Error(err))
		panic(fmt.Sprintf("program: failed to compile shader programs: %v", err))
	}
	m.programs = programs
	m.log.Debug("programs compiled", zap.Int("count", len(Programs())))
	return m
}

// preProcessor registers the uniform blocks, texture slots and shared snippets, reading the
// snippets through the loader.
func (m *manager) preProcessor() (shader.PreProcessor, error) {
	opts := []shader.PreProcessorBuilderOption{
		shader.WithInclude("material", material.GPUMaterialSource),
		shader.WithInclude("light", light.GPULightSource),
	}
	for name, file := range sharedSnippets {
		src, err := m.loader.Load(file)
		if err != nil {
			return nil, err
		}
		opts = append(opts, shader.WithInclude(name, src))
	}
	for _, b := range UniformBlocks() {
		opts = append(opts, shader.WithUniformBlock(b.String(), int(b), b.WGSLType()))
	}
	for s := Position; s < slotCount; s++ {
		opts = append(opts, shader.WithTextureSlot(s.String(), int(s)))
	}
	return shader.NewPreProcessor(opts...), nil
}

func (m *manager) compileAll() ([programCount]backend.Program, error) {
	var programs [programCount]backend.Program
	pp, err := m.preProcessor()
	if err != nil {
		return programs, err
	}
	for _, id := range Programs() {
		p, err := m.compile(id, pp)
		if err != nil {
			releasePrograms(&programs)
			return programs, fmt.Errorf("%s: %w", id, err)
		}
		programs[id] = p
	}
	return programs, nil
}

func (m *manager) compile(id ProgramID, pp shader.PreProcessor) (backend.Program, error) {
	d := descriptors[id]
	vs, err := m.loadShader(d.Vertex, shader.ShaderTypeVertex, d.Prefix, pp)
	if err != nil {
		return nil, err
	}
	var fs shader.Shader
	if d.Fragment != "" {
		if fs, err = m.loadShader(d.Fragment, shader.ShaderTypeFragment, d.Prefix, pp); err != nil {
			return nil, err
		}
	}
	if err := checkDeclarations(d, vs, fs); err != nil {
		return nil, err
	}
	return m.backend.CreateProgram(backend.ProgramDescriptor{Label: id.String(), Vertex: vs, Fragment: fs})
}

func (m *manager) loadShader(name string, stage shader.ShaderType, prefix string, pp shader.PreProcessor) (shader.Shader, error) {
	src, err := m.loader.Load(name)
	if err != nil {
		return nil, err
	}
	if prefix != "" {
		src = "//@oxy:include " + prefix + "\n" + src
	}
	return shader.NewShader(name, stage, src, pp)
}

// checkDeclarations verifies that the shaders of a program declare exactly the uniform blocks
// and texture slots its descriptor lists.
func checkDeclarations(d Descriptor, shaders ...shader.Shader) error {
	var blocks, slots []string
	for _, s := range shaders {
		if s == nil {
			continue
		}
		for _, a := range s.Declarations() {
			switch a.Type {
			case shader.AnnotationTypeUniform:
				blocks = append(blocks, a.Name)
			case shader.AnnotationTypeTexture:
				slots = append(slots, a.Name)
			}
		}
	}

	want := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		want = append(want, b.String())
	}
	if err := sameSet("uniform blocks", want, blocks); err != nil {
		return err
	}

	want = want[:0]
	for _, s := range d.Slots {
		want = append(want, s.String())
	}
	return sameSet("texture slots", want, slots)
}

func sameSet(what string, want, got []string) error {
	slices.Sort(want)
	slices.Sort(got)
	got = slices.Compact(got)
	if !slices.Equal(want, got) {
		return fmt.Errorf("declares %s [%s], expected [%s]", what, strings.Join(got, " "), strings.Join(want, " "))
	}
	return nil
}

func releasePrograms(programs *[programCount]backend.Program) {
	for i, p := range programs {
		if p != nil {
			p.Release()
			programs[i] = nil
		}
	}
}

func (m *manager) UseProgram(p ProgramID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p == m.current || p == NoProgram {
		return
	}
	if p < NoProgram || p >= programCount || m.programs[p] == nil {
		panic(fmt.Sprintf("program: unknown program %v", p))
	}
	m.backend.UseProgram(m.programs[p])
	m.current = p
}

func (m *manager) Current() ProgramID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *manager) Program(p ProgramID) backend.Program {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p <= NoProgram || p >= programCount {
		return nil
	}
	return m.programs[p]
}

func (m *manager) CreateUniformBlocks() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseUniforms()
	for _, block := range UniformBlocks() {
		buf, err := m.backend.CreateBuffer(backend.BufferDescriptor{
			Label: block.WGSLType(),
			Size:  block.Size(),
			Usage: backend.BufferUsageUniform,
		})
		if err != nil {
			m.releaseUniforms()
			return fmt.Errorf("program: failed to create uniform block %s: %w", block, err)
		}
		m.uniforms[block] = buf
		m.backend.BindUniformBuffer(int(block), buf)
	}
	return nil
}

func (m *manager) releaseUniforms() {
	for i, buf := range m.uniforms {
		if buf != nil {
			buf.Release()
			m.uniforms[i] = nil
		}
		m.written[i] = false
	}
}

func (m *manager) UniformBuffer(block UniformBlock) backend.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uniforms[block]
}

func (m *manager) Upload(block UniformBlock, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.uniforms[block]
	if buf == nil {
		panic(fmt.Sprintf("program: upload to uniform block %s before CreateUniformBlocks", block))
	}
	h := xxhash.Sum64(data)
	if m.written[block] && m.hashes[block] == h {
		return
	}
	m.backend.WriteBuffer(buf, 0, data)
	m.hashes[block] = h
	m.written[block] = true
}

func (m *manager) BindTexture(slot TextureSlot, tex backend.Texture) {
	if slot <= Empty || slot >= slotCount {
		panic(fmt.Sprintf("program: unknown texture slot %v", slot))
	}
	m.backend.BindTexture(int(slot), tex)
}

func (m *manager) UnbindTexture(slot TextureSlot) {
	m.BindTexture(slot, nil)
}

func (m *manager) RecompileShaders() error {
	programs, err := m.compileAll()
	if err != nil {
		m.log.Error("shader recompilation failed, keeping previous programs", zap.Error(err))
		return fmt.Errorf("program: failed to recompile shader programs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	releasePrograms(&m.programs)
	m.programs = programs
	m.current = NoProgram
	m.log.Info("shaders recompiled")
	return nil
}

func (m *manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	releasePrograms(&m.programs)
	m.releaseUniforms()
	m.current = NoProgram
}
