package pipeline

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/cespare/xxhash/v2"
	"github.com/cogentcore/webgpu/wgpu"
)

// StencilFace describes the stencil comparison and operations for one face winding.
type StencilFace = wgpu.StencilFaceState

// PassState is a plain descriptor of the fixed-function state a draw pass needs: color write mask,
// face culling, depth test/write, stencil test with reference, masks and per-face operations, and
// blending. It carries no GPU objects; a backend folds it into whatever pipeline object its API
// requires.
type PassState struct {
	WriteMask wgpu.ColorWriteMask
	CullMode  wgpu.CullMode

	DepthTest    bool
	DepthWrite   bool
	DepthCompare wgpu.CompareFunction

	StencilTest      bool
	StencilReference uint32
	StencilReadMask  uint32
	StencilWriteMask uint32
	StencilFront     StencilFace
	StencilBack      StencilFace

	BlendEnabled bool
	Blend        wgpu.BlendState
}

// AdditiveBlend is the ONE, ONE additive blend used to accumulate light.
var AdditiveBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOne,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOne,
		Operation: wgpu.BlendOperationAdd,
	},
}

// KeepFace is a stencil face that never modifies the stencil buffer.
var KeepFace = StencilFace{
	Compare:     wgpu.CompareFunctionAlways,
	FailOp:      wgpu.StencilOperationKeep,
	DepthFailOp: wgpu.StencilOperationKeep,
	PassOp:      wgpu.StencilOperationKeep,
}

// Primitive returns the primitive state for this pass: indexed triangle lists, counter clockwise front faces.
//
// Returns:
//   - wgpu.PrimitiveState: the primitive state
func (s PassState) Primitive() wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  common.Coalesce(s.CullMode, wgpu.CullModeNone),
	}
}

// DepthStencil returns the depth/stencil state for a target with the given depth format.
// A target without a depth attachment (format undefined) yields nil.
//
// Parameters:
//   - format: the depth/stencil attachment format of the bound target
//
// Returns:
//   - *wgpu.DepthStencilState: the depth/stencil state, or nil when the target has no depth attachment
func (s PassState) DepthStencil(format wgpu.TextureFormat) *wgpu.DepthStencilState {
	if format == wgpu.TextureFormatUndefined {
		return nil
	}

	state := &wgpu.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: s.DepthTest && s.DepthWrite,
		DepthCompare:      wgpu.CompareFunctionAlways,
		StencilFront:      KeepFace,
		StencilBack:       KeepFace,
	}
	if s.DepthTest {
		state.DepthCompare = common.Coalesce(s.DepthCompare, wgpu.CompareFunctionLess)
	}
	if s.StencilTest && HasStencil(format) {
		state.StencilFront = s.StencilFront
		state.StencilBack = s.StencilBack
		state.StencilReadMask = s.StencilReadMask
		state.StencilWriteMask = s.StencilWriteMask
	}
	return state
}

// ColorTargets returns one color target per attachment format, all sharing this pass's write mask and blend.
//
// Parameters:
//   - formats: the color attachment formats of the bound target
//
// Returns:
//   - []wgpu.ColorTargetState: the color target states
func (s PassState) ColorTargets(formats []wgpu.TextureFormat) []wgpu.ColorTargetState {
	targets := make([]wgpu.ColorTargetState, len(formats))
	for i, f := range formats {
		targets[i] = wgpu.ColorTargetState{
			Format:    f,
			WriteMask: s.WriteMask,
		}
		if s.BlendEnabled && isBlendable(f) {
			blend := s.Blend
			targets[i].Blend = &blend
		}
	}
	return targets
}

// hash writes every field that influences pipeline creation into the digest.
func (s PassState) hash(d *xxhash.Digest) {
	var buf [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	flag := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	face := func(f StencilFace) {
		put(uint32(f.Compare))
		put(uint32(f.FailOp))
		put(uint32(f.DepthFailOp))
		put(uint32(f.PassOp))
	}

	put(uint32(s.WriteMask))
	put(uint32(s.CullMode))
	put(flag(s.DepthTest))
	put(flag(s.DepthWrite))
	put(uint32(s.DepthCompare))
	put(flag(s.StencilTest))
	put(s.StencilReadMask)
	put(s.StencilWriteMask)
	face(s.StencilFront)
	face(s.StencilBack)
	put(flag(s.BlendEnabled))
	put(uint32(s.Blend.Color.SrcFactor))
	put(uint32(s.Blend.Color.DstFactor))
	put(uint32(s.Blend.Color.Operation))
	put(uint32(s.Blend.Alpha.SrcFactor))
	put(uint32(s.Blend.Alpha.DstFactor))
	put(uint32(s.Blend.Alpha.Operation))
}

// HasStencil reports whether a depth format carries a stencil aspect.
func HasStencil(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatStencil8, wgpu.TextureFormatDepth24PlusStencil8, wgpu.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

// isBlendable reports whether a color format supports blending. Integer formats do not.
func isBlendable(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatR8Uint, wgpu.TextureFormatR16Uint, wgpu.TextureFormatR32Uint,
		wgpu.TextureFormatRG8Uint, wgpu.TextureFormatRGBA8Uint, wgpu.TextureFormatRGBA32Float:
		return false
	}
	return true
}

// HasDepth reports whether a format carries a depth aspect.
func HasDepth(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatDepth16Unorm, wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth24PlusStencil8,
		wgpu.TextureFormatDepth32Float, wgpu.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}
