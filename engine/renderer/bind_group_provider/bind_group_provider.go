package bind_group_provider

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label string
	// group is the bind group index this provider serves.
	group int

	// bindGroupLayout is the layout every bind group of this provider is created against. Not owned.
	bindGroupLayout *wgpu.BindGroupLayout
	// entries are the layout entries that must all be staged before a bind group can be created.
	entries []wgpu.BindGroupLayoutEntry

	// staged holds the resource currently assigned to each binding, keyed by binding index.
	staged map[uint32]stagedResource

	// bindGroups caches created bind groups keyed by the hash of the staged resource ids.
	bindGroups map[uint64]*wgpu.BindGroup
	// maxCached bounds the bind group cache; the cache is flushed when it would grow past it.
	maxCached int
}

// stagedResource is one resource assigned to a binding. The id identifies the resource for hashing.
type stagedResource struct {
	id          uint64
	buffer      *wgpu.Buffer
	size        uint64
	textureView *wgpu.TextureView
	sampler     *wgpu.Sampler
}

// BindGroupProvider owns the bind groups of one bind group index of one program. Resources are
// staged per binding, and BindGroup returns a cached bind group for the staged combination,
// creating it on first use. A deferred frame cycles through a handful of texture combinations,
// so the cache settles quickly.
type BindGroupProvider interface {
	// Release releases every bind group created by this provider. The layout is not owned and is kept.
	Release()

	// Label returns the debug label for this provider.
	// Used for debugging and profiling purposes.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the bind group index this provider serves.
	//
	// Returns:
	//   - int: the group index
	Group() int

	// BindGroupLayout returns the layout bind groups are created against.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Entries returns the layout entries of this group, sorted by binding.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutEntry: the layout entries
	Entries() []wgpu.BindGroupLayoutEntry

	// SetBuffer stages a buffer for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - id: a unique identifier of the buffer
	//   - buf: the buffer
	//   - size: the bound size in bytes, or wgpu.WholeSize
	SetBuffer(binding uint32, id uint64, buf *wgpu.Buffer, size uint64)

	// SetTextureView stages a texture view for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - id: a unique identifier of the view
	//   - view: the texture view
	SetTextureView(binding uint32, id uint64, view *wgpu.TextureView)

	// SetSampler stages a sampler for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - id: a unique identifier of the sampler
	//   - s: the sampler
	SetSampler(binding uint32, id uint64, s *wgpu.Sampler)

	// Key hashes the currently staged resources in layout order.
	//
	// Returns:
	//   - uint64: the cache key of the staged combination
	//   - error: an error naming the first layout binding with nothing staged
	Key() (uint64, error)

	// BindGroup returns the bind group for the staged resources, creating and caching it on a miss.
	//
	// Parameters:
	//   - device: the device used to create the bind group on a cache miss
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group
	//   - error: an error if a binding is missing or creation fails
	BindGroup(device *wgpu.Device) (*wgpu.BindGroup, error)

	// CachedCount returns the number of bind groups currently cached.
	//
	// Returns:
	//   - int: the cache size
	CachedCount() int
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider for one bind group index.
//
// Parameters:
//   - label: a debug label for created bind groups
//   - options: a variadic list of BindGroupProviderOption functions
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:         &sync.Mutex{},
		label:      label,
		staged:     make(map[uint32]stagedResource),
		bindGroups: make(map[uint64]*wgpu.BindGroup),
		maxCached:  64,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Entries() []wgpu.BindGroupLayoutEntry {
	return p.entries
}

func (p *bindGroupProvider) SetBuffer(binding uint32, id uint64, buf *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[binding] = stagedResource{id: id, buffer: buf, size: size}
}

func (p *bindGroupProvider) SetTextureView(binding uint32, id uint64, view *wgpu.TextureView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[binding] = stagedResource{id: id, textureView: view}
}

func (p *bindGroupProvider) SetSampler(binding uint32, id uint64, s *wgpu.Sampler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[binding] = stagedResource{id: id, sampler: s}
}

func (p *bindGroupProvider) Key() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key()
}

func (p *bindGroupProvider) key() (uint64, error) {
	d := xxhash.New()
	var buf [12]byte
	for _, e := range p.entries {
		r, ok := p.staged[e.Binding]
		if !ok {
			return 0, fmt.Errorf("%s: binding %d has nothing staged", p.label, e.Binding)
		}
		binary.LittleEndian.PutUint32(buf[:4], e.Binding)
		binary.LittleEndian.PutUint64(buf[4:], r.id)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64(), nil
}

func (p *bindGroupProvider) BindGroup(device *wgpu.Device) (*wgpu.BindGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key, err := p.key()
	if err != nil {
		return nil, err
	}
	if bg, ok := p.bindGroups[key]; ok {
		return bg, nil
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(p.entries))
	for i, e := range p.entries {
		r := p.staged[e.Binding]
		switch {
		case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			bindGroupEntries[i] = wgpu.BindGroupEntry{Binding: e.Binding, TextureView: r.textureView}
		case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			bindGroupEntries[i] = wgpu.BindGroupEntry{Binding: e.Binding, Sampler: r.sampler}
		default:
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: e.Binding,
				Buffer:  r.buffer,
				Offset:  0,
				Size:    r.size,
			}
		}
	}

	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label + " Bind Group",
		Layout:  p.bindGroupLayout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create bind group: %w", p.label, err)
	}

	if len(p.bindGroups) >= p.maxCached {
		p.flush()
	}
	p.bindGroups[key] = bg
	return bg, nil
}

func (p *bindGroupProvider) CachedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bindGroups)
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flush()
	p.staged = make(map[uint32]stagedResource)
}

func (p *bindGroupProvider) flush() {
	for k, bg := range p.bindGroups {
		bg.Release()
		delete(p.bindGroups, k)
	}
}
