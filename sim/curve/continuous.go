package curve

import (
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
)

// Continuous is a float64 value interpolated linearly between keyframes.
// Before its first keyframe and after its last one, the value is constant.
// Two keyframes at the same time make the value jump.
type Continuous struct {
	*event.EntityBase

	frames *KeyframeContainer[float64]
}

// NewContinuous creates a Continuous curve that holds initial since forever.
func NewContinuous(name string, initial float64) *Continuous {
	return &Continuous{
		EntityBase: event.NewEntityBase(name),
		frames:     NewKeyframeContainer(initial),
	}
}

// Get returns the value at t.
func (c *Continuous) Get(t timing.VTimeInSec) float64 {
	i := c.frames.Last(t)
	a := c.frames.At(i)

	if i+1 >= c.frames.Len() || a.Time.IsMin() {
		return a.Value
	}

	b := c.frames.At(i + 1)

	return interpolate(a, b, t)
}

func interpolate(a, b Keyframe[float64], t timing.VTimeInSec) float64 {
	if b.Time == a.Time {
		return b.Value
	}

	ratio := float64((t - a.Time) / (b.Time - a.Time))

	return a.Value + (b.Value-a.Value)*ratio
}

// SetLast drops everything after t and makes the curve go to v at t.
func (c *Continuous) SetLast(t timing.VTimeInSec, v float64) {
	c.frames.EraseAfter(t)
	c.frames.Insert(t, v)
	c.Changed(t)
}

// SetInsert adds a keyframe at t and keeps the later ones.
func (c *Continuous) SetInsert(t timing.VTimeInSec, v float64) {
	c.frames.Insert(t, v)
	c.Changed(t)
}

// SetReplace replaces the keyframes at t with v.
func (c *Continuous) SetReplace(t timing.VTimeInSec, v float64) {
	c.frames.Replace(t, v)
	c.Changed(t)
}

// Frames returns the keyframes of the curve.
func (c *Continuous) Frames() []Keyframe[float64] {
	return c.frames.Frames()
}

// FirstCrossing returns the first time at or after from at which the value
// reaches threshold, from either side. It returns timing.Never if the value
// never does.
func (c *Continuous) FirstCrossing(
	from timing.VTimeInSec,
	threshold float64,
) timing.VTimeInSec {
	start := from
	v0 := c.Get(from)

	for i := c.frames.Last(from) + 1; i < c.frames.Len(); i++ {
		if v0 == threshold {
			return start
		}

		b := c.frames.At(i)
		if reaches(v0, b.Value, threshold) {
			if b.Time == start || c.frames.At(i-1).Time.IsMin() {
				return b.Time
			}

			ratio := (threshold - v0) / (b.Value - v0)
			return start + timing.VTimeInSec(ratio)*(b.Time-start)
		}

		start = b.Time
		v0 = b.Value
	}

	if v0 == threshold {
		return start
	}

	return timing.Never
}

func reaches(v0, v1, threshold float64) bool {
	if v1 == threshold {
		return true
	}

	return (v0 < threshold) != (v1 < threshold)
}
