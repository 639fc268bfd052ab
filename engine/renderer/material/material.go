package material

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"go.uber.org/zap"
)

// MaxMaterials is the number of materials the static uniform block holds, the reflective
// material included.
const MaxMaterials = 16

// DefaultReflectiveID is the scene material id reserved for the reflective material.
const DefaultReflectiveID uint32 = 100

// ErrTooManyMaterials is returned by Rebuild when the scene materials and the reflective material
// do not fit in MaxMaterials.
var ErrTooManyMaterials = errors.New("material: too many materials")

// table is the implementation of the Table interface.
type table struct {
	mu *sync.Mutex

	reflectiveID uint32
	indices      map[uint32]uint32
	materials    []GPUMaterial
	log          *zap.Logger
}

// Table maps scene material ids onto the dense indices the shaders use to look materials up in
// the static uniform block. The table always ends with a reflective material: a copy of the
// first scene material with IsShiny set, stored under the reserved reflective id.
type Table interface {
	// Rebuild replaces the whole table with the given scene materials. A material id repeated in
	// the input keeps its last entry.
	//
	// Parameters:
	//   - materials: the scene materials in scene order
	//
	// Returns:
	//   - error: ErrTooManyMaterials (wrapped) if the table would exceed MaxMaterials
	Rebuild(materials []scene.Material) error

	// Index returns the dense index of a scene material id. Looking up an id that is not in the
	// table panics.
	//
	// Parameters:
	//   - id: the scene material id, or the reflective id
	//
	// Returns:
	//   - uint32: the dense material index
	Index(id uint32) uint32

	// Contains reports whether a material id is in the table.
	//
	// Parameters:
	//   - id: the scene material id
	//
	// Returns:
	//   - bool: true if Index would succeed
	Contains(id uint32) bool

	// ReflectiveID returns the id reserved for the reflective material.
	//
	// Returns:
	//   - uint32: the reflective material id
	ReflectiveID() uint32

	// ReflectiveIndex returns the dense index of the reflective material, which is always the
	// last one.
	//
	// Returns:
	//   - uint32: the reflective material index
	ReflectiveIndex() uint32

	// Len returns the number of materials in the table, the reflective material included.
	//
	// Returns:
	//   - int: the material count
	Len() int

	// Materials returns a copy of the GPU materials in index order.
	//
	// Returns:
	//   - []GPUMaterial: the materials
	Materials() []GPUMaterial

	// MarshalTo writes MaxMaterials GPU materials into dst, zero filling the unused entries.
	//
	// Parameters:
	//   - dst: the destination slice, at least MaxMaterials*GPUMaterialSize bytes
	MarshalTo(dst []byte)
}

var _ Table = &table{}

// NewTable creates a material table and fills it from the given scene materials.
//
// Parameters:
//   - materials: the scene materials
//   - opts: a variadic list of TableBuilderOption functions
//
// Returns:
//   - Table: the material table
//   - error: an error if the materials do not fit
func NewTable(materials []scene.Material, opts ...TableBuilderOption) (Table, error) {
	t := &table{
		mu:           &sync.Mutex{},
		reflectiveID: DefaultReflectiveID,
		indices:      make(map[uint32]uint32),
		log:          logger.Named("material"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.Rebuild(materials); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *table) Rebuild(materials []scene.Material) error {
	indices := make(map[uint32]uint32, len(materials)+1)
	gpu := make([]GPUMaterial, 0, len(materials)+1)
	for _, m := range materials {
		if m.ID == t.reflectiveID {
			t.log.Warn("scene material uses the reflective id, ignoring it", zap.Uint32("id", m.ID))
			continue
		}
		if idx, ok := indices[m.ID]; ok {
			gpu[idx] = NewGPUMaterial(m)
			continue
		}
		indices[m.ID] = uint32(len(gpu))
		gpu = append(gpu, NewGPUMaterial(m))
	}

	var reflective GPUMaterial
	if len(gpu) > 0 {
		reflective = gpu[0]
	}
	reflective.IsShiny = 1
	indices[t.reflectiveID] = uint32(len(gpu))
	gpu = append(gpu, reflective)

	if len(gpu) > MaxMaterials {
		return fmt.Errorf("%w: %d scene materials plus the reflective material exceed %d", ErrTooManyMaterials, len(gpu)-1, MaxMaterials)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.indices = indices
	t.materials = gpu
	return nil
}

func (t *table) Index(id uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.indices[id]
	if !ok {
		panic(fmt.Sprintf("material: unknown material id %d", id))
	}
	return idx
}

func (t *table) Contains(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.indices[id]
	return ok
}

func (t *table) ReflectiveID() uint32 {
	return t.reflectiveID
}

func (t *table) ReflectiveIndex() uint32 {
	return t.Index(t.reflectiveID)
}

func (t *table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.materials)
}

func (t *table) Materials() []GPUMaterial {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]GPUMaterial(nil), t.materials...)
}

func (t *table) MarshalTo(dst []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(dst[:MaxMaterials*GPUMaterialSize])
	for i := range t.materials {
		t.materials[i].MarshalTo(dst[i*GPUMaterialSize:])
	}
}
