package shader

// PreProcessorBuilderOption is a functional option used to fill a PreProcessor's registries.
type PreProcessorBuilderOption func(*preProcessor)

// WithInclude registers a WGSL snippet that @oxy:include can inject.
//
// Parameters:
//   - name: the snippet name used in the annotation
//   - source: the WGSL source injected at the annotation site
//
// Returns:
//   - PreProcessorBuilderOption: a function that registers the snippet
func WithInclude(name, source string) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.includes[name] = source
	}
}

// WithUniformBlock registers a uniform block that @oxy:uniform can declare.
//
// Parameters:
//   - name: the block name used in the annotation
//   - slot: the fixed binding slot of the block within the uniform group
//   - wgslType: the WGSL struct type of the block
//
// Returns:
//   - PreProcessorBuilderOption: a function that registers the block
func WithUniformBlock(name string, slot int, wgslType string) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.uniformBlocks[name] = uniformBlockEntry{Slot: slot, Type: wgslType}
	}
}

// WithTextureSlot registers a texture unit that @oxy:texture can declare.
//
// Parameters:
//   - name: the slot name used in the annotation
//   - slot: the texture unit
//
// Returns:
//   - PreProcessorBuilderOption: a function that registers the slot
func WithTextureSlot(name string, slot int) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.textureSlots[name] = slot
	}
}
