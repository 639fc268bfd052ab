package mesh_registry

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// MeshGroup names one batch of meshes drawn with a single indirect draw.
type MeshGroup int

const (
	// None is the bound group before the first draw and after Reset.
	None MeshGroup = iota
	// Scene holds every scene mesh.
	Scene
	// Quad is the full-screen quad used by screen-space passes.
	Quad
	// Sphere is the point light volume.
	Sphere
	// Cone is the spot light volume.
	Cone

	groupCount
)

var groupNames = [groupCount]string{"none", "scene", "quad", "sphere", "cone"}

func (g MeshGroup) String() string {
	if g < 0 || g >= groupCount {
		return fmt.Sprintf("MeshGroup(%d)", int(g))
	}
	return groupNames[g]
}

// DrawCommandSize is the byte size of one DrawCommand, the layout of indirect indexed draw arguments.
const DrawCommandSize = 20

// DrawCommand draws every instance of one mesh within a group.
type DrawCommand struct {
	ElementCount  uint32
	InstanceCount uint32
	FirstElement  uint32
	BaseVertex    int32
	BaseInstance  uint32
}

// MarshalTo writes the command as little-endian indirect arguments into dst, which must hold
// DrawCommandSize bytes.
func (c DrawCommand) MarshalTo(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], c.ElementCount)
	binary.LittleEndian.PutUint32(dst[4:8], c.InstanceCount)
	binary.LittleEndian.PutUint32(dst[8:12], c.FirstElement)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(c.BaseVertex))
	binary.LittleEndian.PutUint32(dst[16:20], c.BaseInstance)
}

// FullVertex is the interleaved vertex shared by every group. Size: 32 bytes.
type FullVertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// GroupData is the CPU side of a mesh group, ready for upload.
type GroupData struct {
	Vertices  []FullVertex
	Elements  []uint32
	Instances []uint32
	Commands  []DrawCommand
}

// InstanceCounter returns how many instances of a mesh the scene holds.
type InstanceCounter func(meshID uint32) int

// GenerateVertexData batches meshes into one group. Meshes are appended in order; each one gets a
// draw command whose base instance is the running total of the instance counts before it, and
// that many sequential instance ids are appended to the instance array.
//
// A mesh without vertices ends generation: it and every mesh after it are left out. Normals
// missing for a vertex and UVs of a mesh whose UV count does not match its vertex count are
// filled with zeros so all meshes share one vertex layout.
//
// Parameters:
//   - meshes: the meshes to batch
//   - counter: returns the instance count of a mesh
//
// Returns:
//   - GroupData: the batched group
func GenerateVertexData(meshes []scene.Mesh, counter InstanceCounter) GroupData {
	var data GroupData
	totalInstances := uint32(0)

	for _, mesh := range meshes {
		vertexCount := mesh.VertexCount()
		if vertexCount == 0 {
			return data
		}

		cmd := DrawCommand{
			ElementCount: uint32(len(mesh.Elements)),
			FirstElement: uint32(len(data.Elements)),
			BaseVertex:   int32(len(data.Vertices)),
		}
		data.Elements = append(data.Elements, mesh.Elements...)

		hasUV := len(mesh.UVs) == vertexCount
		for i, p := range mesh.Positions {
			v := FullVertex{Position: p}
			if i < len(mesh.Normals) {
				v.Normal = mesh.Normals[i]
			}
			if hasUV {
				v.UV = mesh.UVs[i]
			}
			data.Vertices = append(data.Vertices, v)
		}

		cmd.InstanceCount = uint32(max(counter(mesh.ID), 0))
		cmd.BaseInstance = totalInstances
		for range cmd.InstanceCount {
			data.Instances = append(data.Instances, totalInstances)
			totalInstances++
		}
		data.Commands = append(data.Commands, cmd)
	}
	return data
}

// VertexBytes returns the vertices as an upload-ready byte view.
func (d GroupData) VertexBytes() []byte {
	return common.SliceToBytes(d.Vertices)
}

// ElementBytes returns the elements as an upload-ready byte view.
func (d GroupData) ElementBytes() []byte {
	return common.SliceToBytes(d.Elements)
}

// InstanceBytes returns the instance ids as an upload-ready byte view.
func (d GroupData) InstanceBytes() []byte {
	return common.SliceToBytes(d.Instances)
}

// CommandBytes returns the draw commands as indirect arguments.
func (d GroupData) CommandBytes() []byte {
	buf := make([]byte, len(d.Commands)*DrawCommandSize)
	for i, c := range d.Commands {
		c.MarshalTo(buf[i*DrawCommandSize:])
	}
	return buf
}
