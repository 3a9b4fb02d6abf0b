// Package analysis samples curves periodically while a simulation runs and
// writes the samples into a backend.
package analysis

import (
	"math"

	"github.com/sarchlab/curvesim/sim/curve"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
)

// Entry is a single sample.
type Entry struct {
	Time  float64
	Where string
	What  string
	Value float64
}

// PerfLogger is the interface that provides the service that can record
// samples.
type PerfLogger interface {
	AddDataEntry(entry Entry)
}

// A Sampler is a handler that records the value of a continuous curve every
// period. Samples are taken on multiples of the period.
//
// A sampler depends on its curve. When the curve is rewritten before samples
// that were already taken, the samples from the change on are taken again,
// so a backend may hold several rows for the same time. The last one wins.
type Sampler struct {
	event.HandlerBase

	period timing.VTimeInSec
	logger PerfLogger

	// sampled marks events whose next prediction follows a sample taken at
	// the reference time.
	sampled map[uint64]bool
}

// Watch starts sampling a curve at the first multiple of the period after
// the current time of the loop.
func (s *Sampler) Watch(loop *event.Loop, c *curve.Continuous) *event.Event {
	return loop.CreateEvent(c, s, event.ParamMap{}, loop.Now())
}

// Setup makes the event depend on its curve. The creation time counts as
// sampled.
func (s *Sampler) Setup(evt *event.Event, _ event.State) {
	target, _ := evt.Target()
	evt.DependOn(target)

	s.sampled[evt.Hash()] = true
}

// PredictInvokeTime returns the next sampling time. After a sample, it is the
// next multiple of the period. After a change, it is the first multiple at or
// after the change.
func (s *Sampler) PredictInvokeTime(
	ref timing.VTimeInSec,
	evt *event.Event,
	_ event.State,
) timing.VTimeInSec {
	steps := math.Ceil(float64(ref / s.period))

	if s.sampled[evt.Hash()] {
		delete(s.sampled, evt.Hash())
		steps = math.Floor(float64(ref/s.period)) + 1
	}

	return timing.VTimeInSec(steps) * s.period
}

// Invoke records the value of the target curve.
func (s *Sampler) Invoke(
	_ *event.Loop,
	evt *event.Event,
	_ event.State,
	now timing.VTimeInSec,
) error {
	target, _ := evt.Target()
	c := target.(*curve.Continuous)

	s.sampled[evt.Hash()] = true

	s.logger.AddDataEntry(Entry{
		Time:  float64(now),
		Where: c.Name(),
		What:  "Value",
		Value: c.Get(now),
	})

	return nil
}

// SamplerBuilder can build Samplers.
type SamplerBuilder struct {
	period timing.VTimeInSec
	logger PerfLogger
}

// MakeSamplerBuilder creates a new SamplerBuilder.
func MakeSamplerBuilder() SamplerBuilder {
	return SamplerBuilder{
		period: 1,
	}
}

// WithPeriod sets the time between two samples.
func (b SamplerBuilder) WithPeriod(period timing.VTimeInSec) SamplerBuilder {
	b.period = period
	return b
}

// WithPerfLogger sets where the samples go.
func (b SamplerBuilder) WithPerfLogger(logger PerfLogger) SamplerBuilder {
	b.logger = logger
	return b
}

// Build creates a Sampler.
func (b SamplerBuilder) Build() *Sampler {
	if b.period <= 0 {
		panic("sampling period must be positive")
	}

	if b.logger == nil {
		panic("sampler needs a perf logger")
	}

	return &Sampler{
		HandlerBase: event.NewHandlerBase("sample", event.Repeat),
		period:      b.period,
		logger:      b.logger,
		sampled:     make(map[uint64]bool),
	}
}
