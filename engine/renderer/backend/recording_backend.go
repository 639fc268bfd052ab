package backend

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Op names a recorded backend call.
type Op string

const (
	OpCreateTexture       Op = "CreateTexture"
	OpCreateBuffer        Op = "CreateBuffer"
	OpCreateFramebuffer   Op = "CreateFramebuffer"
	OpCreateVertexArray   Op = "CreateVertexArray"
	OpCreateProgram       Op = "CreateProgram"
	OpWriteBuffer         Op = "WriteBuffer"
	OpWriteTexture        Op = "WriteTexture"
	OpBeginFrame          Op = "BeginFrame"
	OpEndFrame            Op = "EndFrame"
	OpBindFramebuffer     Op = "BindFramebuffer"
	OpSetViewport         Op = "SetViewport"
	OpClear               Op = "Clear"
	OpApplyPassState      Op = "ApplyPassState"
	OpUseProgram          Op = "UseProgram"
	OpBindUniformBuffer   Op = "BindUniformBuffer"
	OpBindTexture         Op = "BindTexture"
	OpBindVertexArray     Op = "BindVertexArray"
	OpDrawIndexedIndirect Op = "DrawIndexedIndirect"
	OpBlitFramebuffer     Op = "BlitFramebuffer"
	OpGenerateMipmaps     Op = "GenerateMipmaps"
	OpConfigureSurface    Op = "ConfigureSurface"
	OpReleaseResource     Op = "ReleaseResource"
)

// SurfaceLabel is the framebuffer label recorded for the display surface.
const SurfaceLabel = "surface"

// Call is one recorded backend call together with the binding context it was made in.
type Call struct {
	Op Op

	// Label is the label of the resource the call targets, empty when there is none. Draws carry
	// the label of the bound vertex array.
	Label string

	// Framebuffer is the label of the bound target when the call was made.
	Framebuffer string

	// Program is the label of the bound program when the call was made.
	Program string

	// State is the pass state in effect when the call was made.
	State pipeline.PassState

	// Slot is the uniform slot or texture unit of binding calls.
	Slot int

	// Count is the command count of draws, the clear flags of clears and the byte count of writes.
	Count int
}

// Recorder is a Backend that needs no GPU. It records every call with its binding context, keeps
// the contents of buffers and counts live resources, so the renderer's behaviour can be checked
// in tests.
type Recorder interface {
	Backend

	// Calls returns a copy of every call recorded since creation or the last ResetCalls.
	Calls() []Call

	// CallsOf returns the recorded calls of one op.
	CallsOf(op Op) []Call

	// Count returns how many calls of one op were recorded.
	Count(op Op) int

	// ResetCalls forgets every recorded call.
	ResetCalls()

	// Contents returns the bytes last written to a buffer.
	Contents(buf Buffer) []byte

	// Live returns the number of created resources that have not been released.
	Live() int
}

// recordingBackend is the implementation of the Recorder interface.
type recordingBackend struct {
	mu  *sync.Mutex
	cfg *backendConfig

	calls    []Call
	live     map[uint64]bool
	contents map[uint64][]byte

	framebuffer string
	program     string
	vertexArray string
	state       pipeline.PassState
	inFrame     bool
}

var _ Recorder = &recordingBackend{}

// NewRecordingBackend creates a recording backend with a surface of the given size.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - Recorder: the recording backend
func NewRecordingBackend(width, height int) Recorder {
	return NewBackend(BackendTypeRecording, nil, WithSurfaceSize(width, height)).(Recorder)
}

func newRecordingBackend(cfg *backendConfig) *recordingBackend {
	return &recordingBackend{
		mu:          &sync.Mutex{},
		cfg:         cfg,
		live:        make(map[uint64]bool),
		contents:    make(map[uint64][]byte),
		framebuffer: SurfaceLabel,
	}
}

// recordedResource stands in for every handle type.
type recordedResource struct {
	owner  *recordingBackend
	id     uint64
	label  string
	width  int
	height int
	format wgpu.TextureFormat
	mips   int
	size   uint64

	colors       []Texture
	depthStencil Texture
	vertex       shader.Shader
	fragment     shader.Shader
}

var (
	_ Texture     = &recordedResource{}
	_ Buffer      = &recordedResource{}
	_ Framebuffer = &recordedResource{}
	_ VertexArray = &recordedResource{}
	_ Program     = &recordedResource{}
)

func (r *recordedResource) ID() uint64                    { return r.id }
func (r *recordedResource) Label() string                 { return r.label }
func (r *recordedResource) Width() int                    { return r.width }
func (r *recordedResource) Height() int                   { return r.height }
func (r *recordedResource) Format() wgpu.TextureFormat    { return r.format }
func (r *recordedResource) MipLevels() int                { return r.mips }
func (r *recordedResource) Size() uint64                  { return r.size }
func (r *recordedResource) ColorAttachments() []Texture   { return r.colors }
func (r *recordedResource) DepthStencil() Texture         { return r.depthStencil }
func (r *recordedResource) VertexShader() shader.Shader   { return r.vertex }
func (r *recordedResource) FragmentShader() shader.Shader { return r.fragment }

func (r *recordedResource) Release() {
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	if !r.owner.live[r.id] {
		return
	}
	delete(r.owner.live, r.id)
	delete(r.owner.contents, r.id)
	r.owner.record(Call{Op: OpReleaseResource, Label: r.label})
}

// record appends a call stamped with the current binding context. The caller holds mu.
func (b *recordingBackend) record(c Call) {
	c.Framebuffer = b.framebuffer
	c.Program = b.program
	c.State = b.state
	b.calls = append(b.calls, c)
}

func (b *recordingBackend) track(r *recordedResource) *recordedResource {
	r.owner = b
	r.id = nextID()
	b.live[r.id] = true
	return r
}

func (b *recordingBackend) Type() BackendType {
	return BackendTypeRecording
}

func (b *recordingBackend) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("backend: texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpCreateTexture, Label: desc.Label})
	return b.track(&recordedResource{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		mips:   max(desc.MipLevels, 1),
	}), nil
}

func (b *recordingBackend) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpCreateBuffer, Label: desc.Label, Count: int(desc.Size)})
	r := b.track(&recordedResource{label: desc.Label, size: max(desc.Size, uint64(len(desc.Contents)))})
	if desc.Contents != nil {
		b.contents[r.id] = append([]byte(nil), desc.Contents...)
	}
	return r, nil
}

func (b *recordingBackend) CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error) {
	w, h, err := validateFramebuffer(desc)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpCreateFramebuffer, Label: desc.Label})
	return b.track(&recordedResource{
		label:        desc.Label,
		width:        w,
		height:       h,
		colors:       append([]Texture(nil), desc.Color...),
		depthStencil: desc.DepthStencil,
	}), nil
}

func (b *recordingBackend) CreateVertexArray(desc VertexArrayDescriptor) (VertexArray, error) {
	if desc.Vertices == nil || desc.Elements == nil || desc.Instances == nil || desc.Indirect == nil {
		return nil, fmt.Errorf("backend: vertex array %q is missing a buffer", desc.Label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpCreateVertexArray, Label: desc.Label})
	return b.track(&recordedResource{label: desc.Label}), nil
}

func (b *recordingBackend) CreateProgram(desc ProgramDescriptor) (Program, error) {
	if desc.Vertex == nil {
		return nil, fmt.Errorf("backend: program %q has no vertex shader", desc.Label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpCreateProgram, Label: desc.Label})
	return b.track(&recordedResource{label: desc.Label, vertex: desc.Vertex, fragment: desc.Fragment}), nil
}

func (b *recordingBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpWriteBuffer, Label: buf.Label(), Count: len(data)})

	cur := b.contents[buf.ID()]
	if end := int(offset) + len(data); end > len(cur) {
		grown := make([]byte, end)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:], data)
	b.contents[buf.ID()] = cur
}

func (b *recordingBackend) WriteTexture(tex Texture, data common.TextureStagingData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpWriteTexture, Label: tex.Label(), Count: len(data.Pixels)})
}

func (b *recordingBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("backend: previous frame not ended")
	}
	b.inFrame = true
	b.record(Call{Op: OpBeginFrame})
	return nil
}

func (b *recordingBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return fmt.Errorf("backend: no frame in progress")
	}
	b.inFrame = false
	b.record(Call{Op: OpEndFrame})
	return nil
}

func (b *recordingBackend) BindFramebuffer(fb Framebuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framebuffer = SurfaceLabel
	if fb != nil {
		b.framebuffer = fb.Label()
	}
	b.record(Call{Op: OpBindFramebuffer, Label: b.framebuffer})
}

func (b *recordingBackend) SetViewport(x, y, width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpSetViewport, Slot: x, Count: width * height})
}

func (b *recordingBackend) Clear(flags ClearFlags) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpClear, Label: b.framebuffer, Count: int(flags)})
}

func (b *recordingBackend) ApplyPassState(state pipeline.PassState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	b.record(Call{Op: OpApplyPassState})
}

func (b *recordingBackend) UseProgram(p Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = ""
	if p != nil {
		b.program = p.Label()
	}
	b.record(Call{Op: OpUseProgram, Label: b.program})
}

func (b *recordingBackend) BindUniformBuffer(slot int, buf Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpBindUniformBuffer, Label: buf.Label(), Slot: slot})
}

func (b *recordingBackend) BindTexture(unit int, tex Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := Call{Op: OpBindTexture, Slot: unit}
	if tex != nil {
		c.Label = tex.Label()
	}
	b.record(c)
}

func (b *recordingBackend) BindVertexArray(va VertexArray) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vertexArray = va.Label()
	b.record(Call{Op: OpBindVertexArray, Label: b.vertexArray})
}

func (b *recordingBackend) DrawIndexedIndirect(commandCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpDrawIndexedIndirect, Label: b.vertexArray, Count: commandCount})
}

func (b *recordingBackend) BlitFramebuffer(src Framebuffer, dst Framebuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := SurfaceLabel
	if dst != nil {
		target = dst.Label()
	}
	b.record(Call{Op: OpBlitFramebuffer, Label: src.Label()})
	// a blit targets dst regardless of the bound framebuffer
	b.calls[len(b.calls)-1].Framebuffer = target
}

func (b *recordingBackend) GenerateMipmaps(tex Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: OpGenerateMipmaps, Label: tex.Label(), Count: tex.MipLevels()})
}

func (b *recordingBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.width, b.cfg.height = width, height
	b.record(Call{Op: OpConfigureSurface, Count: width * height})
}

func (b *recordingBackend) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.width, b.cfg.height
}

func (b *recordingBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contents = make(map[uint64][]byte)
}

func (b *recordingBackend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *recordingBackend) CallsOf(op Op) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (b *recordingBackend) Count(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (b *recordingBackend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *recordingBackend) Contents(buf Buffer) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.contents[buf.ID()]...)
}

func (b *recordingBackend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}
