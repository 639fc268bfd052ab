package renderer

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// materialResolver returns the dense material index of an instance, false if its material is unknown.
type materialResolver func(inst scene.Instance) (uint32, bool)

// frameData builds the per-frame uniform block. Instance entries are filled in chunks on a worker
// pool; the camera part is written by the caller's goroutine.
type frameData struct {
	pool    worker.DynamicWorkerPool
	workers int

	block program.GPUPerFrame
	bytes []byte
}

func newFrameData(workers int) *frameData {
	workers = max(workers, 1)
	return &frameData{
		// workers are reused across frames; the queue holds one frame's chunks with headroom
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers: workers,
		bytes:   make([]byte, program.GPUPerFrameSize),
	}
}

// prepare fills the block with instances and the camera and returns the marshalled bytes. The
// returned slice is reused by the next call.
func (f *frameData) prepare(instances []scene.Instance, resolve materialResolver, viewProjection mgl32.Mat4, eye mgl32.Vec3) ([]byte, error) {
	n := min(len(instances), program.MaxInstances)
	chunk := (n + f.workers - 1) / f.workers

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		unknown []uint32
	)
	taskID := 0
	for from := 0; from < n; from += chunk {
		to := min(from+chunk, n)
		wg.Add(1)
		id := taskID
		taskID++
		f.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := from; i < to; i++ {
					index, ok := resolve(instances[i])
					if !ok {
						mu.Lock()
						unknown = append(unknown, instances[i].MaterialID)
						mu.Unlock()
					}
					f.block.Instances[i] = program.GPUInstance{
						ModelTransform: instances[i].Transform,
						MaterialIndex:  index,
					}
				}
				f.block.MarshalInstances(f.bytes, from, to)
				return nil, nil
			},
		})
	}
	// pool.Wait() waits for idle workers to exit, too slow for a frame barrier
	wg.Wait()

	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("renderer: unknown material ids %v", slices.Compact(unknown))
	}

	// entries past the instance count keep no stale data from earlier frames
	for i := n; i < program.MaxInstances; i++ {
		f.block.Instances[i] = program.GPUInstance{}
	}
	f.block.MarshalInstances(f.bytes, n, program.MaxInstances)

	f.block.ViewProjection = viewProjection
	f.block.EyePosition = eye
	f.block.MarshalCamera(f.bytes)
	return f.bytes, nil
}
