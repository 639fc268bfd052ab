package mesh_registry

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"go.uber.org/zap"
)

// meshGroupResources are the GPU buffers of one built group and the CPU data they hold.
type meshGroupResources struct {
	data GroupData

	vertices    backend.Buffer
	elements    backend.Buffer
	instances   backend.Buffer
	indirect    backend.Buffer
	vertexArray backend.VertexArray
}

func (g *meshGroupResources) release() {
	for _, r := range []backend.Resource{g.vertexArray, g.indirect, g.instances, g.elements, g.vertices} {
		if r != nil {
			r.Release()
		}
	}
}

// meshRegistry is the implementation of the MeshRegistry interface.
type meshRegistry struct {
	mu      *sync.Mutex
	backend backend.Backend
	log     *zap.Logger

	groups [groupCount]*meshGroupResources
	bound  MeshGroup

	sphereRings      int
	coneSubdivisions int
}

// MeshRegistry owns the batched geometry of every mesh group and draws a group with one indirect
// draw. The bound group is cached so consecutive draws of one group skip the rebind.
type MeshRegistry interface {
	// Build creates every group from a scene: the Scene group from its meshes, then the Quad,
	// Sphere and Cone proxies. Groups built earlier are released first.
	//
	// Parameters:
	//   - source: the scene to batch
	//
	// Returns:
	//   - error: error if a GPU resource could not be created
	Build(source scene.Scene) error

	// BuildSceneGroup creates the Scene group from meshes, asking counter for each mesh's
	// instance count. See GenerateVertexData for the batching rules.
	//
	// Parameters:
	//   - meshes: the meshes to batch
	//   - counter: returns the instance count of a mesh
	//
	// Returns:
	//   - error: error if a GPU resource could not be created
	BuildSceneGroup(meshes []scene.Mesh, counter InstanceCounter) error

	// BuildGroup uploads prepared data as a group, replacing a group built earlier.
	//
	// Parameters:
	//   - group: the group to create
	//   - data: the batched geometry
	//
	// Returns:
	//   - error: error if a GPU resource could not be created
	BuildGroup(group MeshGroup, data GroupData) error

	// DrawMeshGroup issues the indirect draw of a group, binding its vertex array first only if
	// another group is bound. Drawing a group that was never built panics.
	//
	// Parameters:
	//   - group: the group to draw
	DrawMeshGroup(group MeshGroup)

	// Commands returns the draw commands of a group, nil if it was never built.
	//
	// Parameters:
	//   - group: the group
	//
	// Returns:
	//   - []DrawCommand: the commands
	Commands(group MeshGroup) []DrawCommand

	// Instances returns the instance ids of a group, nil if it was never built.
	//
	// Parameters:
	//   - group: the group
	//
	// Returns:
	//   - []uint32: the instance ids
	Instances(group MeshGroup) []uint32

	// Bound returns the group whose vertex array is bound, None before the first draw.
	Bound() MeshGroup

	// Reset forgets the bound group so the next draw rebinds.
	Reset()

	// Release releases every buffer and vertex array the registry created. Safe to call twice.
	Release()
}

var _ MeshRegistry = &meshRegistry{}

// NewMeshRegistry creates an empty registry drawing through b.
//
// Parameters:
//   - b: the backend to create buffers on and draw with
//   - opts: a variadic list of MeshRegistryBuilderOption functions
//
// Returns:
//   - MeshRegistry: the registry
func NewMeshRegistry(b backend.Backend, opts ...MeshRegistryBuilderOption) MeshRegistry {
	r := &meshRegistry{
		mu:               &sync.Mutex{},
		backend:          b,
		log:              logger.Named("mesh_registry"),
		bound:            None,
		sphereRings:      12,
		coneSubdivisions: 5,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *meshRegistry) Build(source scene.Scene) error {
	r.Release()
	if err := r.BuildSceneGroup(source.Meshes(), source.InstanceCount); err != nil {
		return err
	}
	if err := r.BuildGroup(Quad, QuadData()); err != nil {
		return err
	}
	if err := r.BuildGroup(Sphere, SphereData(r.sphereRings)); err != nil {
		return err
	}
	return r.BuildGroup(Cone, ConeData(r.coneSubdivisions))
}

func (r *meshRegistry) BuildSceneGroup(meshes []scene.Mesh, counter InstanceCounter) error {
	data := GenerateVertexData(meshes, counter)
	if len(data.Commands) < len(meshes) {
		r.log.Warn("mesh without vertices ended batching",
			zap.Int("batched", len(data.Commands)),
			zap.Int("meshes", len(meshes)),
		)
	}
	return r.BuildGroup(Scene, data)
}

func (r *meshRegistry) BuildGroup(group MeshGroup, data GroupData) error {
	if group <= None || group >= groupCount {
		panic(fmt.Sprintf("mesh_registry: unknown mesh group %v", group))
	}

	res := &meshGroupResources{data: data}
	var err error
	create := func(label string, usage backend.BufferUsage, contents []byte) backend.Buffer {
		if err != nil {
			return nil
		}
		var buf backend.Buffer
		buf, err = r.backend.CreateBuffer(backend.BufferDescriptor{
			Label:    fmt.Sprintf("%v_%s", group, label),
			Size:     uint64(len(contents)),
			Usage:    usage,
			Contents: contents,
		})
		return buf
	}
	res.vertices = create("vertices", backend.BufferUsageVertex, data.VertexBytes())
	res.elements = create("elements", backend.BufferUsageIndex, data.ElementBytes())
	res.instances = create("instances", backend.BufferUsageVertex, data.InstanceBytes())
	res.indirect = create("commands", backend.BufferUsageIndirect, data.CommandBytes())
	if err == nil {
		res.vertexArray, err = r.backend.CreateVertexArray(backend.VertexArrayDescriptor{
			Label:     group.String(),
			Vertices:  res.vertices,
			Instances: res.instances,
			Elements:  res.elements,
			Indirect:  res.indirect,
		})
	}
	if err != nil {
		res.release()
		return fmt.Errorf("mesh_registry: failed to build %v group: %w", group, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old := r.groups[group]; old != nil {
		old.release()
	}
	r.groups[group] = res
	if r.bound == group {
		r.bound = None
	}
	r.log.Debug("built mesh group",
		zap.Stringer("group", group),
		zap.Int("vertices", len(data.Vertices)),
		zap.Int("commands", len(data.Commands)),
		zap.Int("instances", len(data.Instances)),
	)
	return nil
}

func (r *meshRegistry) DrawMeshGroup(group MeshGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group <= None || group >= groupCount || r.groups[group] == nil {
		panic(fmt.Sprintf("mesh_registry: mesh group %v was never built", group))
	}
	g := r.groups[group]
	if group != r.bound {
		r.backend.BindVertexArray(g.vertexArray)
		r.bound = group
	}
	r.backend.DrawIndexedIndirect(len(g.data.Commands))
}

func (r *meshRegistry) Commands(group MeshGroup) []DrawCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group <= None || group >= groupCount || r.groups[group] == nil {
		return nil
	}
	return append([]DrawCommand(nil), r.groups[group].data.Commands...)
}

func (r *meshRegistry) Instances(group MeshGroup) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group <= None || group >= groupCount || r.groups[group] == nil {
		return nil
	}
	return append([]uint32(nil), r.groups[group].data.Instances...)
}

func (r *meshRegistry) Bound() MeshGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

func (r *meshRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = None
}

func (r *meshRegistry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, g := range r.groups {
		if g != nil {
			g.release()
			r.groups[i] = nil
		}
	}
	r.bound = None
}
