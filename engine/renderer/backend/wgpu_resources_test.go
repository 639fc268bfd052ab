package backend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestReleasedProgramEvictsItsPipelines(t *testing.T) {
	cache := pipeline.NewCache()
	gbuffer := &wgpuProgram{wgpuHandle: newHandle("gbuffer"), pipelines: cache}
	ambient := &wgpuProgram{wgpuHandle: newHandle("ambient"), pipelines: cache}

	cache.Put(pipeline.NewPipeline(1, pipeline.WithProgramID(gbuffer.ID())))
	cache.Put(pipeline.NewPipeline(2, pipeline.WithProgramID(gbuffer.ID())))
	cache.Put(pipeline.NewPipeline(3, pipeline.WithProgramID(ambient.ID())))
	assert.Equal(t, 3, cache.Len())

	gbuffer.Release()
	assert.Equal(t, 1, cache.Len())
	gbuffer.Release()
	assert.Equal(t, 1, cache.Len())

	ambient.Release()
	assert.Zero(t, cache.Len())
}

// recompiling releases every program and builds new ones, the cache must not grow per cycle
func TestRecompileCyclesDoNotGrowPipelineCache(t *testing.T) {
	cache := pipeline.NewCache()
	for cycle := range 3 {
		var programs []*wgpuProgram
		for _, label := range []string{"gbuffer", "ambient", "point_light"} {
			p := &wgpuProgram{wgpuHandle: newHandle(label), pipelines: cache}
			cache.Put(pipeline.NewPipeline(uint64(cycle*10)+p.ID(), pipeline.WithProgramID(p.ID())))
			programs = append(programs, p)
		}
		assert.Equal(t, len(programs), cache.Len())
		for _, p := range programs {
			p.Release()
		}
	}
	assert.Zero(t, cache.Len())
}
