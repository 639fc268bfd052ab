package profiler

import "time"

// ProfilerBuilderOption is a functional option applied to a profiler during construction via NewProfiler.
type ProfilerBuilderOption func(*profiler)

// WithUpdateInterval sets how often Tick logs statistics.
//
// Parameters:
//   - interval: the time between two logged ticks, zero logs every tick
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval to a profiler
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *profiler) {
		p.updateInterval = interval
	}
}

// WithClock replaces the time source, mainly for tests.
//
// Parameters:
//   - now: returns the current time
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the clock to a profiler
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *profiler) {
		p.now = now
	}
}
