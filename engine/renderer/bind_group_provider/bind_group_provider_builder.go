package bind_group_provider

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithGroup sets the bind group index the provider serves.
//
// Parameters:
//   - group: the bind group index
//
// Returns:
//   - BindGroupProviderOption: a function that sets the group index
func WithGroup(group int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.group = group
	}
}

// WithBindGroupLayout sets the bind group layout for this provider.
//
// Parameters:
//   - bgl: the bind group layout to use for this provider
//
// Returns:
//   - BindGroupProviderOption: a function that sets the bind group layout for this provider
func WithBindGroupLayout(bgl *wgpu.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroupLayout = bgl
	}
}

// WithLayoutEntries sets the layout entries every bind group must satisfy. Entries are sorted by binding.
//
// Parameters:
//   - entries: the layout entries of the group
//
// Returns:
//   - BindGroupProviderOption: a function that sets the layout entries
func WithLayoutEntries(entries []wgpu.BindGroupLayoutEntry) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append([]wgpu.BindGroupLayoutEntry(nil), entries...)
		sort.Slice(p.entries, func(i, j int) bool {
			return p.entries[i].Binding < p.entries[j].Binding
		})
	}
}

// WithMaxCached bounds how many bind groups are kept before the cache is flushed.
//
// Parameters:
//   - n: the cache bound, ignored when not positive
//
// Returns:
//   - BindGroupProviderOption: a function that sets the cache bound
func WithMaxCached(n int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		if n > 0 {
			p.maxCached = n
		}
	}
}
