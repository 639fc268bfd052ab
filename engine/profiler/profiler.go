package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"go.uber.org/zap"
)

// section accumulates the CPU time spent in one named part of the frame.
type section struct {
	started time.Time
	running bool
	total   time.Duration
	samples int
}

// profiler is the implementation of the Profiler interface.
type profiler struct {
	mu  *sync.Mutex
	log *zap.Logger
	now func() time.Time

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	sections map[string]*section
	timings  map[string]time.Duration
}

// Profiler tracks frame rate, memory statistics and per-pass CPU time.
// Outputs stats to the log at a configurable interval.
type Profiler interface {
	// Start begins timing a section. Starting a running section restarts it.
	//
	// Parameters:
	//   - name: the section name, e.g. "gbuffer"
	Start(name string)

	// Stop ends timing a section and adds the elapsed time to it. Stopping a section that is not
	// running does nothing.
	//
	// Parameters:
	//   - name: the section name
	Stop(name string)

	// Tick should be called once per frame to track frame timing.
	// Logs performance statistics when the update interval has elapsed.
	// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory
	// and the average time of every section.
	//
	// Returns:
	//   - bool: true if stats were logged this tick, false otherwise
	Tick() bool

	// Timings returns the average time per sample of every section as of the last logged tick.
	//
	// Returns:
	//   - map[string]time.Duration: a copy of the section averages
	Timings() map[string]time.Duration
}

var _ Profiler = &profiler{}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - opts: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerBuilderOption) Profiler {
	p := &profiler{
		mu:             &sync.Mutex{},
		log:            logger.Named("profiler"),
		now:            time.Now,
		updateInterval: time.Second,
		sections:       make(map[string]*section),
		timings:        make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

func (p *profiler) Start(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sections[name]
	if !ok {
		s = &section{}
		p.sections[name] = s
	}
	s.started = p.now()
	s.running = true
}

func (p *profiler) Stop(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sections[name]
	if !ok || !s.running {
		return
	}
	s.total += p.now().Sub(s.started)
	s.samples++
	s.running = false
}

func (p *profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := 0.0
	if elapsed > 0 {
		fps = float64(p.frameCount) / elapsed.Seconds()
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocRateMB := 0.0
	if elapsed > 0 {
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()
	}

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.collectTimings()

	fields := []zap.Field{
		zap.Float64("fps", fps),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Uint64("gc_last_us", lastPauseUs),
		zap.Uint64("gc_max_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB),
	}
	names := make([]string, 0, len(p.timings))
	for name := range p.timings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, zap.Duration(name, p.timings[name]))
	}
	p.log.Info("frame stats", fields...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// collectTimings turns the accumulated sections into averages and resets them. Sections without
// samples since the last tick are dropped.
func (p *profiler) collectTimings() {
	clear(p.timings)
	for name, s := range p.sections {
		if s.samples == 0 {
			continue
		}
		p.timings[name] = s.total / time.Duration(s.samples)
		s.total, s.samples = 0, 0
	}
}

func (p *profiler) Timings() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]time.Duration, len(p.timings))
	for name, d := range p.timings {
		out[name] = d
	}
	return out
}
