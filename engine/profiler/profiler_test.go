package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestTickRespectsInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	p := NewProfiler(WithUpdateInterval(time.Second), WithClock(clock.now))

	logged := 0
	for range 20 {
		if p.Tick() {
			logged++
		}
	}
	assert.Equal(t, 2, logged)
}

func TestSectionsAverageOverSamples(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 2 * time.Millisecond}
	p := NewProfiler(WithUpdateInterval(0), WithClock(clock.now))

	for range 3 {
		p.Start("gbuffer")
		p.Stop("gbuffer")
	}
	assert.Empty(t, p.Timings())

	assert.True(t, p.Tick())
	assert.Equal(t, map[string]time.Duration{"gbuffer": 2 * time.Millisecond}, p.Timings())

	// sections without samples since the last tick are dropped
	assert.True(t, p.Tick())
	assert.Empty(t, p.Timings())
}

func TestStopWithoutStartIsIgnored(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(0))
	p.Stop("ssr")
	p.Start("smaa")
	p.Stop("smaa")
	p.Stop("smaa")
	p.Tick()

	timings := p.Timings()
	assert.NotContains(t, timings, "ssr")
	assert.Contains(t, timings, "smaa")
}

func TestTimingsReturnsCopy(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(0))
	p.Start("lights")
	p.Stop("lights")
	p.Tick()

	timings := p.Timings()
	timings["lights"] = time.Hour
	assert.NotEqual(t, time.Hour, p.Timings()["lights"])
}
