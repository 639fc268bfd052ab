package draw_pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// DrawPass names one fixed-function configuration of the deferred frame.
type DrawPass int

const (
	// NoPass is the initial value of a state machine: nothing has been applied yet. It cannot be set.
	NoPass DrawPass = iota
	GBuffer
	Ambient
	FullScreen
	LightStencil
	LightShading
	ShadowMap
	SSR
	SMAAEdge
	SMAABlend
	SMAAResolve

	passCount
)

var passNames = [passCount]string{
	"NoPass", "GBuffer", "Ambient", "FullScreen", "LightStencil", "LightShading",
	"ShadowMap", "SSR", "SMAAEdge", "SMAABlend", "SMAAResolve",
}

func (p DrawPass) String() string {
	if p < 0 || p >= passCount {
		return fmt.Sprintf("DrawPass(%d)", int(p))
	}
	return passNames[p]
}

func face(compare wgpu.CompareFunction, fail, depthFail, pass wgpu.StencilOperation) pipeline.StencilFace {
	return pipeline.StencilFace{Compare: compare, FailOp: fail, DepthFailOp: depthFail, PassOp: pass}
}

var (
	keep = wgpu.StencilOperationKeep

	writeGeometry = face(wgpu.CompareFunctionAlways, keep, keep, wgpu.StencilOperationReplace)
	readGeometry  = face(wgpu.CompareFunctionEqual, keep, keep, keep)
	consumeMark   = face(wgpu.CompareFunctionEqual, keep, wgpu.StencilOperationDecrementClamp, wgpu.StencilOperationDecrementClamp)
	markEdges     = face(wgpu.CompareFunctionAlways, keep, keep, wgpu.StencilOperationIncrementClamp)
	consumeEdges  = face(wgpu.CompareFunctionEqual, keep, keep, wgpu.StencilOperationDecrementClamp)
)

// passStates is the fixed-function state of every pass, indexed by DrawPass. The light passes
// implement the stencil light-volume technique: LightStencil marks pixels whose depth lies inside
// the volume (back faces increment where occluded, front faces decrement where occluded) and
// LightShading lights only marked pixels, clearing the mark as it goes.
var passStates = [passCount]pipeline.PassState{
	GBuffer: {
		WriteMask:        wgpu.ColorWriteMaskAll,
		CullMode:         wgpu.CullModeBack,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     wgpu.CompareFunctionLessEqual,
		StencilTest:      true,
		StencilReference: 0,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		StencilFront:     writeGeometry,
		StencilBack:      writeGeometry,
	},
	Ambient: {
		WriteMask:        wgpu.ColorWriteMaskAll,
		CullMode:         wgpu.CullModeBack,
		StencilTest:      true,
		StencilReference: 0,
		StencilReadMask:  0xff,
		StencilWriteMask: 0x00,
		StencilFront:     readGeometry,
		StencilBack:      readGeometry,
	},
	FullScreen: {
		WriteMask:        wgpu.ColorWriteMaskAll,
		CullMode:         wgpu.CullModeBack,
		StencilTest:      true,
		StencilReference: 0,
		StencilReadMask:  0xff,
		StencilWriteMask: 0x00,
		StencilFront:     readGeometry,
		StencilBack:      readGeometry,
		BlendEnabled:     true,
		Blend:            pipeline.AdditiveBlend,
	},
	LightStencil: {
		WriteMask:        wgpu.ColorWriteMaskNone,
		CullMode:         wgpu.CullModeNone,
		DepthTest:        true,
		DepthCompare:     wgpu.CompareFunctionLessEqual,
		StencilTest:      true,
		StencilReference: 0x80,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		StencilFront:     face(wgpu.CompareFunctionNotEqual, keep, wgpu.StencilOperationDecrementWrap, keep),
		StencilBack:      face(wgpu.CompareFunctionNotEqual, keep, wgpu.StencilOperationIncrementWrap, keep),
	},
	LightShading: {
		WriteMask:        wgpu.ColorWriteMaskAll,
		CullMode:         wgpu.CullModeFront,
		StencilTest:      true,
		StencilReference: 1,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		StencilFront:     consumeMark,
		StencilBack:      consumeMark,
		BlendEnabled:     true,
		Blend:            pipeline.AdditiveBlend,
	},
	ShadowMap: {
		WriteMask:    wgpu.ColorWriteMaskNone,
		CullMode:     wgpu.CullModeFront,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: wgpu.CompareFunctionLessEqual,
	},
	SSR: {
		WriteMask:    wgpu.ColorWriteMaskAll,
		CullMode:     wgpu.CullModeBack,
		BlendEnabled: true,
		Blend:        pipeline.AdditiveBlend,
	},
	SMAAEdge: {
		WriteMask:        wgpu.ColorWriteMaskRed | wgpu.ColorWriteMaskGreen,
		CullMode:         wgpu.CullModeBack,
		StencilTest:      true,
		StencilReference: 0,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		StencilFront:     markEdges,
		StencilBack:      markEdges,
	},
	SMAABlend: {
		WriteMask:        wgpu.ColorWriteMaskAll,
		CullMode:         wgpu.CullModeBack,
		StencilTest:      true,
		StencilReference: 1,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		StencilFront:     consumeEdges,
		StencilBack:      consumeEdges,
	},
	SMAAResolve: {
		WriteMask: wgpu.ColorWriteMaskAll,
		CullMode:  wgpu.CullModeBack,
	},
}

// State returns the fixed-function state of a pass. NoPass and unknown passes panic.
//
// Parameters:
//   - pass: the pass
//
// Returns:
//   - pipeline.PassState: the state of the pass
func State(pass DrawPass) pipeline.PassState {
	if pass <= NoPass || pass >= passCount {
		panic(fmt.Sprintf("draw_pass: unknown pass %v", pass))
	}
	return passStates[pass]
}

// Passes returns every settable pass in declaration order.
func Passes() []DrawPass {
	out := make([]DrawPass, 0, passCount-1)
	for p := NoPass + 1; p < passCount; p++ {
		out = append(out, p)
	}
	return out
}
