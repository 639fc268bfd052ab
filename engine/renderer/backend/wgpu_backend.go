package backend

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// drawCommandSize is the byte size of one DrawIndexedIndirect argument block.
const drawCommandSize = 20

// wgpuBackendImpl implements Backend on WebGPU. Fixed-function state, the bound program, the bound
// target formats and the vertex layout are folded into cached render pipelines. Render passes are
// opened lazily on the first draw after a target change, so clears become load operations.
type wgpuBackendImpl struct {
	mu  *sync.Mutex
	cfg *backendConfig
	log *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	// indirectFirstInstance is true when the device accepts non-zero base instances in indirect draws.
	indirectFirstInstance bool

	pipelines *pipeline.Cache
	blitter   *blitter

	// placeholders fill texture bindings a program declares but nothing is bound to.
	placeholders map[wgpu.TextureSampleType]*wgpuTexture
	// fallbackSamplers fill sampler bindings whose bound texture carries the wrong sampler kind.
	fallbackSamplers map[wgpu.SamplerBindingType]*wgpu.Sampler
	fallbackIDs      map[wgpu.SamplerBindingType]uint64

	// Frame state
	frameEncoder *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	pass         *wgpu.RenderPassEncoder
	// encoded is true when the frame encoder holds commands not yet submitted.
	encoded bool

	// Binding state
	framebuffer  *wgpuFramebuffer
	pendingClear ClearFlags
	viewport     [4]int
	state        pipeline.PassState
	program      *wgpuProgram
	vertexArray  *wgpuVertexArray
	uniforms     map[int]*wgpuBuffer
	textures     map[int]*wgpuTexture
}

var _ Backend = &wgpuBackendImpl{}

func newWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, cfg *backendConfig) *wgpuBackendImpl {
	runtime.LockOSThread()
	b := &wgpuBackendImpl{
		mu:               &sync.Mutex{},
		cfg:              cfg,
		log:              logger.Named("backend"),
		instance:         wgpu.CreateInstance(nil),
		pipelines:        pipeline.NewCache(),
		placeholders:     make(map[wgpu.TextureSampleType]*wgpuTexture),
		fallbackSamplers: make(map[wgpu.SamplerBindingType]*wgpu.Sampler),
		fallbackIDs:      make(map[wgpu.SamplerBindingType]uint64),
		uniforms:         make(map[int]*wgpuBuffer),
		textures:         make(map[int]*wgpuTexture),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(fmt.Sprintf("backend: failed to request adapter: %v", err))
	}
	b.adapter = a

	var features []wgpu.FeatureName
	for _, f := range a.EnumerateFeatures() {
		if f == wgpu.FeatureNameIndirectFirstInstance {
			features = append(features, f)
			b.indirectFirstInstance = true
		}
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "Main Device",
		RequiredFeatures: features,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("backend: failed to request device: %v", err))
	}
	b.device = d
	b.queue = d.GetQueue()

	switch cfg.presentMode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	if cfg.width > 0 && cfg.height > 0 {
		b.ConfigureSurface(cfg.width, cfg.height)
	}

	b.blitter, err = newBlitter(b.device)
	if err != nil {
		panic(fmt.Sprintf("backend: failed to create blit pipelines: %v", err))
	}
	b.log.Info("webgpu backend ready",
		zap.Uint32("surfaceFormat", uint32(b.surfaceFormat)),
		zap.Bool("indirectFirstInstance", b.indirectFirstInstance))
	return b
}

func (b *wgpuBackendImpl) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.cfg.width, b.cfg.height = width, height
}

func (b *wgpuBackendImpl) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.width, b.cfg.height
}

func (b *wgpuBackendImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createTexture(desc)
}

func (b *wgpuBackendImpl) createTexture(desc TextureDescriptor) (*wgpuTexture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("backend: texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	mips := max(desc.MipLevels, 1)

	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	if !pipeline.HasDepth(desc.Format) && !pipeline.HasStencil(desc.Format) {
		usage |= wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        desc.Format,
		MipLevelCount: uint32(mips),
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create texture %q: %w", desc.Label, err)
	}

	t := &wgpuTexture{
		wgpuHandle: newHandle(desc.Label),
		texture:    tex,
		format:     desc.Format,
		width:      desc.Width,
		height:     desc.Height,
		mips:       mips,
		viewID:     nextID(),
		samplerID:  nextID(),
	}

	aspect, viewFormat := wgpu.TextureAspectAll, desc.Format
	if pipeline.HasDepth(desc.Format) {
		// the view format resolves to the depth aspect's format
		aspect, viewFormat = wgpu.TextureAspectDepthOnly, wgpu.TextureFormatUndefined
	}
	t.sampledView, err = tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label + " Sampled View",
		Format:          viewFormat,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   uint32(mips),
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          aspect,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("backend: failed to create view of %q: %w", desc.Label, err)
	}

	for level := range mips {
		view, viewErr := tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s Mip %d", desc.Label, level),
			Format:          desc.Format,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    uint32(level),
			MipLevelCount:   1,
			BaseArrayLayer:  0,
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if viewErr != nil {
			t.Release()
			return nil, fmt.Errorf("backend: failed to create mip view of %q: %w", desc.Label, viewErr)
		}
		t.mipViews = append(t.mipViews, view)
	}

	s := desc.Sampler
	t.sampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label + " Sampler",
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(s.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
		Compare:       s.Compare,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("backend: failed to create sampler of %q: %w", desc.Label, err)
	}
	return t, nil
}

func (b *wgpuBackendImpl) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var usage wgpu.BufferUsage
	switch desc.Usage {
	case BufferUsageVertex:
		usage = wgpu.BufferUsageVertex
	case BufferUsageIndex:
		usage = wgpu.BufferUsageIndex
	case BufferUsageUniform:
		usage = wgpu.BufferUsageUniform
	case BufferUsageIndirect:
		usage = wgpu.BufferUsageIndirect
	}

	// buffer sizes must be multiples of 4
	size := max(desc.Size, uint64(len(desc.Contents)), 4)
	size = (size + 3) &^ 3

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create buffer %q: %w", desc.Label, err)
	}
	out := &wgpuBuffer{
		wgpuHandle: newHandle(desc.Label),
		buffer:     buf,
		size:       size,
		usage:      desc.Usage,
	}
	if len(desc.Contents) > 0 {
		b.writeBuffer(out, 0, desc.Contents)
	}
	return out, nil
}

func (b *wgpuBackendImpl) CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error) {
	w, h, err := validateFramebuffer(desc)
	if err != nil {
		return nil, err
	}
	fb := &wgpuFramebuffer{wgpuHandle: newHandle(desc.Label), width: w, height: h}
	for _, c := range desc.Color {
		fb.colors = append(fb.colors, c.(*wgpuTexture))
	}
	if desc.DepthStencil != nil {
		fb.depthStencil = desc.DepthStencil.(*wgpuTexture)
	}
	return fb, nil
}

func (b *wgpuBackendImpl) CreateVertexArray(desc VertexArrayDescriptor) (VertexArray, error) {
	if desc.Vertices == nil || desc.Elements == nil || desc.Instances == nil || desc.Indirect == nil {
		return nil, fmt.Errorf("backend: vertex array %q is missing a buffer", desc.Label)
	}
	return &wgpuVertexArray{
		wgpuHandle: newHandle(desc.Label),
		vertices:   desc.Vertices.(*wgpuBuffer),
		instances:  desc.Instances.(*wgpuBuffer),
		elements:   desc.Elements.(*wgpuBuffer),
		indirect:   desc.Indirect.(*wgpuBuffer),
	}, nil
}

func (b *wgpuBackendImpl) CreateProgram(desc ProgramDescriptor) (Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Vertex == nil {
		return nil, fmt.Errorf("backend: program %q has no vertex shader", desc.Label)
	}
	p := &wgpuProgram{wgpuHandle: newHandle(desc.Label), vertex: desc.Vertex, fragment: desc.Fragment, pipelines: b.pipelines}

	var err error
	p.vertexModule, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Vertex.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Vertex.Source(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("backend: failed to compile %s: %w", desc.Vertex.Key(), err)
	}

	fragmentLayouts := map[int]wgpu.BindGroupLayoutDescriptor{}
	if desc.Fragment != nil {
		p.fragmentModule, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: desc.Fragment.Key(),
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: desc.Fragment.Source(),
			},
		})
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("backend: failed to compile %s: %w", desc.Fragment.Key(), err)
		}
		fragmentLayouts = desc.Fragment.BindGroupLayoutDescriptors()
	}

	merged := mergeBindGroupLayouts(desc.Vertex.BindGroupLayoutDescriptors(), fragmentLayouts)
	maxGroup := -1
	for g := range merged {
		maxGroup = max(maxGroup, g)
	}
	p.bindGroupLayouts = make([]*wgpu.BindGroupLayout, maxGroup+1)
	p.providers = make([]bind_group_provider.BindGroupProvider, maxGroup+1)
	for g := range maxGroup + 1 {
		layoutDesc := merged[g]
		layoutDesc.Label = fmt.Sprintf("%s Group %d", desc.Label, g)
		layout, layoutErr := b.device.CreateBindGroupLayout(&layoutDesc)
		if layoutErr != nil {
			p.Release()
			return nil, fmt.Errorf("backend: failed to create bind group layout for group %d of %q: %w", g, desc.Label, layoutErr)
		}
		p.bindGroupLayouts[g] = layout
		p.providers[g] = bind_group_provider.NewBindGroupProvider(layoutDesc.Label,
			bind_group_provider.WithGroup(g),
			bind_group_provider.WithBindGroupLayout(layout),
			bind_group_provider.WithLayoutEntries(layoutDesc.Entries),
		)
	}

	p.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: p.bindGroupLayouts,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("backend: failed to create pipeline layout for %q: %w", desc.Label, err)
	}

	p.vertexBuffers, err = vertexBufferLayouts(desc.Vertex.VertexAttributes())
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("backend: program %q: %w", desc.Label, err)
	}
	return p, nil
}

// vertexBufferLayouts keeps the attributes of the interleaved vertex buffer and the instance buffer
// that the vertex shader declares. A declared location neither buffer provides is an error.
func vertexBufferLayouts(declared []wgpu.VertexAttribute) ([]wgpu.VertexBufferLayout, error) {
	var perVertex, perInstance []wgpu.VertexAttribute
	for _, d := range declared {
		switch {
		case d.ShaderLocation == InstanceLocation:
			if d.Format != wgpu.VertexFormatUint32 {
				return nil, fmt.Errorf("instance id at location %d must be u32", InstanceLocation)
			}
			perInstance = append(perInstance, wgpu.VertexAttribute{Format: wgpu.VertexFormatUint32, ShaderLocation: InstanceLocation})
		case int(d.ShaderLocation) < len(vertexAttributes):
			attr := vertexAttributes[d.ShaderLocation]
			if attr.Format != d.Format {
				return nil, fmt.Errorf("vertex input at location %d has the wrong type", d.ShaderLocation)
			}
			perVertex = append(perVertex, attr)
		default:
			return nil, fmt.Errorf("no vertex buffer provides location %d", d.ShaderLocation)
		}
	}
	return []wgpu.VertexBufferLayout{
		{ArrayStride: VertexStride, StepMode: wgpu.VertexStepModeVertex, Attributes: perVertex},
		{ArrayStride: 4, StepMode: wgpu.VertexStepModeInstance, Attributes: perInstance},
	}, nil
}

func (b *wgpuBackendImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeBuffer(buf.(*wgpuBuffer), offset, data)
}

// writeBuffer submits already encoded commands before writing, so draws recorded earlier in the
// frame see the previous contents. Queue writes otherwise land before the whole command buffer.
func (b *wgpuBackendImpl) writeBuffer(buf *wgpuBuffer, offset uint64, data []byte) {
	b.submitEncoded()

	// queue writes must be 4-byte aligned in size
	padded := data
	if rem := len(data) % 4; rem != 0 {
		padded = make([]byte, len(data)+4-rem)
		copy(padded, data)
	}
	b.queue.WriteBuffer(buf.buffer, offset, padded)

	if buf.usage == BufferUsageIndirect {
		if end := int(offset) + len(data); end > len(buf.shadow) {
			grown := make([]byte, end)
			copy(grown, buf.shadow)
			buf.shadow = grown
		}
		copy(buf.shadow[offset:], data)
	}
}

func (b *wgpuBackendImpl) WriteTexture(tex Texture, data common.TextureStagingData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitEncoded()

	t := tex.(*wgpuTexture)
	bpp := common.Coalesce(data.BytesPerPixel, 4)
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * bpp,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (b *wgpuBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return fmt.Errorf("backend: previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSurfaceLost, err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("%w: %w", ErrSurfaceLost, err)
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flushClear()
	err := b.submit()

	if b.frameSurface != nil {
		if err == nil {
			b.surface.Present()
		}
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameView = nil
		b.frameSurface = nil
	}
	return err
}

// encoder returns the frame's command encoder, creating it on first use.
func (b *wgpuBackendImpl) encoder() *wgpu.CommandEncoder {
	if b.frameEncoder == nil {
		encoder, err := b.device.CreateCommandEncoder(nil)
		if err != nil {
			panic(fmt.Sprintf("backend: failed to create command encoder: %v", err))
		}
		b.frameEncoder = encoder
	}
	return b.frameEncoder
}

// submit ends any open pass and submits the encoder's commands.
func (b *wgpuBackendImpl) submit() error {
	b.endPass()
	if b.frameEncoder == nil {
		return nil
	}
	defer func() {
		b.frameEncoder.Release()
		b.frameEncoder = nil
		b.encoded = false
	}()

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("backend: failed to finish command encoder: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

// submitEncoded submits the encoder only when it holds commands.
func (b *wgpuBackendImpl) submitEncoded() {
	if !b.encoded {
		return
	}
	if err := b.submit(); err != nil {
		b.log.Error("mid-frame submit failed", zap.Error(err))
	}
}

func (b *wgpuBackendImpl) endPass() {
	if b.pass == nil {
		return
	}
	b.pass.End()
	b.pass.Release()
	b.pass = nil
}

// flushClear opens and closes an empty pass when a clear is pending on the bound target, so clears
// with no draw after them still happen.
func (b *wgpuBackendImpl) flushClear() {
	if b.pendingClear == 0 {
		return
	}
	if b.beginPass() {
		b.endPass()
	}
}

func (b *wgpuBackendImpl) BindFramebuffer(fb Framebuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var next *wgpuFramebuffer
	if fb != nil {
		next = fb.(*wgpuFramebuffer)
	}
	if next == b.framebuffer {
		return
	}
	b.flushClear()
	b.endPass()
	b.framebuffer = next
}

func (b *wgpuBackendImpl) SetViewport(x, y, width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = [4]int{x, y, width, height}
}

func (b *wgpuBackendImpl) Clear(flags ClearFlags) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// a pass cannot be cleared once open; the next pass loads with a clear instead
	b.endPass()
	b.pendingClear |= flags
}

func (b *wgpuBackendImpl) ApplyPassState(state pipeline.PassState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}

func (b *wgpuBackendImpl) UseProgram(p Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p == nil {
		b.program = nil
		return
	}
	b.program = p.(*wgpuProgram)
}

func (b *wgpuBackendImpl) BindUniformBuffer(slot int, buf Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uniforms[slot] = buf.(*wgpuBuffer)
}

func (b *wgpuBackendImpl) BindTexture(unit int, tex Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tex == nil {
		delete(b.textures, unit)
		return
	}
	b.textures[unit] = tex.(*wgpuTexture)
}

func (b *wgpuBackendImpl) BindVertexArray(va VertexArray) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vertexArray = va.(*wgpuVertexArray)
}

// targetSize returns the size of the bound target.
func (b *wgpuBackendImpl) targetSize() (int, int) {
	if b.framebuffer == nil {
		return b.cfg.width, b.cfg.height
	}
	return b.framebuffer.width, b.framebuffer.height
}

// beginPass opens a render pass on the bound target, turning pending clears into load operations.
// It reports false when the target is the surface and no frame is in progress.
func (b *wgpuBackendImpl) beginPass() bool {
	if b.pass != nil {
		return true
	}

	clear := b.pendingClear
	b.pendingClear = 0
	loadOp := func(flag ClearFlags) wgpu.LoadOp {
		if clear&flag != 0 {
			return wgpu.LoadOpClear
		}
		return wgpu.LoadOpLoad
	}
	values := b.cfg.clearValues
	if clear&ClearTransparent != 0 {
		values.Color = wgpu.Color{}
	}

	desc := &wgpu.RenderPassDescriptor{}
	if b.framebuffer == nil {
		if b.frameView == nil {
			b.log.Warn("draw to the surface outside a frame dropped")
			return false
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:       b.frameView,
			LoadOp:     loadOp(ClearColor | ClearTransparent),
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: values.Color,
		}}
	} else {
		for _, c := range b.framebuffer.colors {
			desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
				View:       c.attachmentView(),
				LoadOp:     loadOp(ClearColor | ClearTransparent),
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: values.Color,
			})
		}
		if ds := b.framebuffer.depthStencil; ds != nil {
			att := &wgpu.RenderPassDepthStencilAttachment{View: ds.attachmentView()}
			if pipeline.HasDepth(ds.format) {
				att.DepthLoadOp = loadOp(ClearDepth)
				att.DepthStoreOp = wgpu.StoreOpStore
				att.DepthClearValue = values.Depth
			}
			if pipeline.HasStencil(ds.format) {
				att.StencilLoadOp = loadOp(ClearStencil)
				att.StencilStoreOp = wgpu.StoreOpStore
				att.StencilClearValue = values.Stencil
			}
			desc.DepthStencilAttachment = att
		}
	}

	b.pass = b.encoder().BeginRenderPass(desc)
	b.encoded = true
	return true
}

func (b *wgpuBackendImpl) DrawIndexedIndirect(commandCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if commandCount <= 0 {
		return
	}
	if b.program == nil || b.vertexArray == nil {
		b.log.Warn("draw skipped: no program or vertex array bound")
		return
	}
	rp, err := b.renderPipeline()
	if err != nil {
		b.log.Error("draw skipped", zap.String("program", b.program.label), zap.Error(err))
		return
	}
	bindGroups, err := b.bindGroups()
	if err != nil {
		b.log.Error("draw skipped", zap.String("program", b.program.label), zap.Error(err))
		return
	}
	if !b.beginPass() {
		return
	}

	pass := b.pass
	pass.SetPipeline(rp)
	pass.SetStencilReference(b.state.StencilReference)
	b.applyViewport()
	for g, bg := range bindGroups {
		pass.SetBindGroup(uint32(g), bg, nil)
	}

	va := b.vertexArray
	pass.SetVertexBuffer(0, va.vertices.buffer, 0, wgpu.WholeSize)
	pass.SetVertexBuffer(1, va.instances.buffer, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(va.elements.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)

	for i := range commandCount {
		offset := uint64(i * drawCommandSize)
		if b.indirectFirstInstance {
			pass.DrawIndexedIndirect(va.indirect.buffer, offset)
			continue
		}
		if int(offset)+drawCommandSize > len(va.indirect.shadow) {
			break
		}
		cmd := va.indirect.shadow[offset : offset+drawCommandSize]
		pass.DrawIndexed(
			binary.LittleEndian.Uint32(cmd[0:]),
			binary.LittleEndian.Uint32(cmd[4:]),
			binary.LittleEndian.Uint32(cmd[8:]),
			int32(binary.LittleEndian.Uint32(cmd[12:])),
			binary.LittleEndian.Uint32(cmd[16:]),
		)
	}
}

func (b *wgpuBackendImpl) applyViewport() {
	tw, th := b.targetSize()
	x, y, w, h := b.viewport[0], b.viewport[1], b.viewport[2], b.viewport[3]
	if w <= 0 || h <= 0 {
		x, y, w, h = 0, 0, tw, th
	}
	x, y = common.Clamp(x, 0, tw), common.Clamp(y, 0, th)
	w, h = common.Clamp(w, 1, tw-x), common.Clamp(h, 1, th-y)
	b.pass.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
}

// renderPipeline returns the cached pipeline for the current program, state, target and vertex layout.
func (b *wgpuBackendImpl) renderPipeline() (*wgpu.RenderPipeline, error) {
	colorFormats := []wgpu.TextureFormat{b.surfaceFormat}
	depthFormat := wgpu.TextureFormatUndefined
	if b.framebuffer != nil {
		colorFormats = b.framebuffer.colorFormats()
		depthFormat = b.framebuffer.depthFormat()
	}

	key := pipeline.Key(b.program.id, b.state, colorFormats, depthFormat, 1)
	if p, ok := b.pipelines.Get(key); ok {
		return p.RenderPipeline(), nil
	}

	p := pipeline.NewPipeline(key,
		pipeline.WithLabel(b.program.label),
		pipeline.WithProgramID(b.program.id),
		pipeline.WithPassState(b.state),
		pipeline.WithColorFormats(colorFormats...),
		pipeline.WithDepthFormat(depthFormat),
	)
	fragmentEntry := ""
	if b.program.fragment != nil {
		fragmentEntry = b.program.fragment.EntryPoint()
	}
	desc := p.Descriptor(b.program.pipelineLayout, wgpu.VertexState{
		Module:     b.program.vertexModule,
		EntryPoint: b.program.vertex.EntryPoint(),
		Buffers:    b.program.vertexBuffers,
	}, b.program.fragmentModule, fragmentEntry)

	rp, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}
	p.SetRenderPipeline(rp)
	b.pipelines.Put(p)
	b.log.Debug("render pipeline created", zap.String("program", b.program.label), zap.Int("cached", b.pipelines.Len()))
	return rp, nil
}

// bindGroups stages the bound uniform buffers and textures on the program's providers and returns
// one bind group per group index.
func (b *wgpuBackendImpl) bindGroups() ([]*wgpu.BindGroup, error) {
	out := make([]*wgpu.BindGroup, len(b.program.providers))
	for g, provider := range b.program.providers {
		for _, e := range provider.Entries() {
			switch {
			case e.Buffer.Type != wgpu.BufferBindingTypeUndefined:
				buf, ok := b.uniforms[int(e.Binding)]
				if !ok {
					return nil, fmt.Errorf("no uniform buffer bound to slot %d", e.Binding)
				}
				provider.SetBuffer(e.Binding, buf.id, buf.buffer, wgpu.WholeSize)
			case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
				tex, err := b.boundTexture(int(e.Binding)/2, e.Texture.SampleType)
				if err != nil {
					return nil, err
				}
				provider.SetTextureView(e.Binding, tex.viewID, tex.sampledView)
			case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
				id, s, err := b.boundSampler(int(e.Binding)/2, e.Sampler.Type)
				if err != nil {
					return nil, err
				}
				provider.SetSampler(e.Binding, id, s)
			}
		}
		bg, err := provider.BindGroup(b.device)
		if err != nil {
			return nil, err
		}
		out[g] = bg
	}
	return out, nil
}

// boundTexture returns the texture bound to a unit, or a placeholder of the right sample type.
func (b *wgpuBackendImpl) boundTexture(unit int, sampleType wgpu.TextureSampleType) (*wgpuTexture, error) {
	if tex, ok := b.textures[unit]; ok {
		return tex, nil
	}
	if tex, ok := b.placeholders[sampleType]; ok {
		return tex, nil
	}

	format := wgpu.TextureFormatRGBA8Unorm
	switch sampleType {
	case wgpu.TextureSampleTypeUint:
		format = wgpu.TextureFormatR8Uint
	case wgpu.TextureSampleTypeSint:
		format = wgpu.TextureFormatR8Sint
	case wgpu.TextureSampleTypeDepth:
		format = wgpu.TextureFormatDepth32Float
	}
	tex, err := b.createTexture(TextureDescriptor{
		Label:  fmt.Sprintf("Placeholder %d", sampleType),
		Width:  1,
		Height: 1,
		Format: format,
	})
	if err != nil {
		return nil, err
	}
	b.placeholders[sampleType] = tex
	return tex, nil
}

// boundSampler returns the sampler of the texture bound to a unit when its kind matches the
// binding, or a fallback sampler of the binding's kind.
func (b *wgpuBackendImpl) boundSampler(unit int, kind wgpu.SamplerBindingType) (uint64, *wgpu.Sampler, error) {
	if tex, ok := b.textures[unit]; ok {
		comparison := tex.format == wgpu.TextureFormatDepth32Float && kind == wgpu.SamplerBindingTypeComparison
		if comparison || kind == wgpu.SamplerBindingTypeFiltering && !pipeline.HasDepth(tex.format) {
			return tex.samplerID, tex.sampler, nil
		}
	}
	if s, ok := b.fallbackSamplers[kind]; ok {
		return b.fallbackIDs[kind], s, nil
	}

	desc := &wgpu.SamplerDescriptor{
		Label:         "Fallback Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	if kind == wgpu.SamplerBindingTypeComparison {
		desc.Compare = wgpu.CompareFunctionLessEqual
	}
	s, err := b.device.CreateSampler(desc)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create fallback sampler: %w", err)
	}
	b.fallbackSamplers[kind] = s
	b.fallbackIDs[kind] = nextID()
	return b.fallbackIDs[kind], s, nil
}

func (b *wgpuBackendImpl) BlitFramebuffer(src Framebuffer, dst Framebuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	source := src.(*wgpuFramebuffer)
	if len(source.colors) == 0 {
		return
	}
	from := source.colors[0]

	if dst != nil {
		target := dst.(*wgpuFramebuffer)
		if len(target.colors) == 0 {
			return
		}
		to := target.colors[0]
		if to.format == from.format && to.width == from.width && to.height == from.height {
			b.endPass()
			b.encoder().CopyTextureToTexture(
				&wgpu.ImageCopyTexture{Texture: from.texture, Aspect: wgpu.TextureAspectAll},
				&wgpu.ImageCopyTexture{Texture: to.texture, Aspect: wgpu.TextureAspectAll},
				&wgpu.Extent3D{Width: uint32(from.width), Height: uint32(from.height), DepthOrArrayLayers: 1},
			)
			b.encoded = true
			return
		}
		b.drawCopy(from.attachmentView(), to.attachmentView(), to.format)
		return
	}

	if b.frameView == nil {
		b.log.Warn("blit to the surface outside a frame dropped")
		return
	}
	b.drawCopy(from.attachmentView(), b.frameView, b.surfaceFormat)
}

func (b *wgpuBackendImpl) GenerateMipmaps(tex Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := tex.(*wgpuTexture)
	for level := 1; level < t.mips; level++ {
		b.drawCopy(t.mipViews[level-1], t.mipViews[level], t.format)
	}
}

// drawCopy draws a fullscreen triangle sampling from into to, outside of the tracked binding state.
func (b *wgpuBackendImpl) drawCopy(from, to *wgpu.TextureView, format wgpu.TextureFormat) {
	b.flushClear()
	b.endPass()
	if err := b.blitter.copy(b.encoder(), from, to, format); err != nil {
		b.log.Error("copy pass failed", zap.Error(err))
		return
	}
	b.encoded = true
}

func (b *wgpuBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endPass()
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.pipelines.Release()
	b.blitter.release()
	for _, t := range b.placeholders {
		t.Release()
	}
	for _, s := range b.fallbackSamplers {
		s.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}

// mergeBindGroupLayouts merges the bind group layout descriptors from a vertex and fragment shader
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
		for _, e := range vertexLayouts[g].Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range fragmentLayouts[g].Entries {
			if existing, ok := entryMap[e.Binding]; ok {
				// same binding in both stages
				existing.Visibility |= e.Visibility
				entryMap[e.Binding] = existing
			} else {
				entryMap[e.Binding] = e
			}
		}

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return merged
}
