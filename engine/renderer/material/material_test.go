package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sceneMaterials() []scene.Material {
	return []scene.Material{
		{ID: 7, DiffuseColour: mgl32.Vec3{0.5, 0.4, 0.3}, SpecularColour: mgl32.Vec3{1, 1, 1}, Shininess: 32},
		{ID: 3, DiffuseColour: mgl32.Vec3{0.1, 0.2, 0.3}, Shininess: 8, IsShiny: true},
		{ID: 12, DiffuseColour: mgl32.Vec3{0.9, 0.9, 0.9}},
	}
}

func TestIndexRoundTrip(t *testing.T) {
	mats := sceneMaterials()
	tbl, err := NewTable(mats)
	require.NoError(t, err)

	gpu := tbl.Materials()
	require.Len(t, gpu, len(mats)+1)
	for i, m := range mats {
		idx := tbl.Index(m.ID)
		assert.Equal(t, uint32(i), idx)
		assert.Equal(t, [3]float32(m.DiffuseColour), gpu[idx].DiffuseColour)
	}
}

func TestReflectiveMaterialCopiesFirst(t *testing.T) {
	tbl, err := NewTable(sceneMaterials())
	require.NoError(t, err)

	assert.Equal(t, uint32(3), tbl.Index(DefaultReflectiveID))
	assert.Equal(t, uint32(3), tbl.ReflectiveIndex())

	gpu := tbl.Materials()
	reflective := gpu[tbl.ReflectiveIndex()]
	assert.Equal(t, gpu[0].DiffuseColour, reflective.DiffuseColour)
	assert.Equal(t, gpu[0].Shininess, reflective.Shininess)
	assert.Equal(t, int32(1), reflective.IsShiny)
	assert.Equal(t, int32(0), gpu[0].IsShiny)
}

func TestCustomReflectiveID(t *testing.T) {
	tbl, err := NewTable(sceneMaterials(), WithReflectiveID(55))
	require.NoError(t, err)
	assert.True(t, tbl.Contains(55))
	assert.False(t, tbl.Contains(DefaultReflectiveID))
}

func TestUnknownIDPanics(t *testing.T) {
	tbl, err := NewTable(sceneMaterials())
	require.NoError(t, err)
	assert.Panics(t, func() { tbl.Index(999) })
}

func TestRebuildReplacesTable(t *testing.T) {
	tbl, err := NewTable(sceneMaterials())
	require.NoError(t, err)

	require.NoError(t, tbl.Rebuild([]scene.Material{{ID: 40}}))
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, uint32(0), tbl.Index(40))
	assert.Equal(t, uint32(1), tbl.ReflectiveIndex())
	assert.False(t, tbl.Contains(7))
}

func TestEmptySceneStillHasReflective(t *testing.T) {
	tbl, err := NewTable(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, uint32(0), tbl.ReflectiveIndex())
}

func TestTooManyMaterials(t *testing.T) {
	mats := make([]scene.Material, MaxMaterials)
	for i := range mats {
		mats[i].ID = uint32(i)
	}
	_, err := NewTable(mats)
	assert.ErrorIs(t, err, ErrTooManyMaterials)

	_, err = NewTable(mats[:MaxMaterials-1])
	assert.NoError(t, err)
}

func TestMarshalLayout(t *testing.T) {
	tbl, err := NewTable(sceneMaterials())
	require.NoError(t, err)

	buf := make([]byte, MaxMaterials*GPUMaterialSize)
	for i := range buf {
		buf[i] = 0xff
	}
	tbl.MarshalTo(buf)

	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(0.5), f32(0))
	assert.Equal(t, float32(32), f32(12))
	assert.Equal(t, float32(1), f32(16))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[GPUMaterialSize+28:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[3*GPUMaterialSize+28:]))
	for _, b := range buf[4*GPUMaterialSize:] {
		require.Zero(t, b)
	}

	var g GPUMaterial
	assert.Equal(t, GPUMaterialSize, g.Size())
}
