package curve

import (
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
)

// Discrete is a value that changes in steps. It holds the value of the last
// keyframe at or before the queried time.
type Discrete[T any] struct {
	*event.EntityBase

	frames *KeyframeContainer[T]
}

// NewDiscrete creates a Discrete curve that holds initial since forever.
func NewDiscrete[T any](name string, initial T) *Discrete[T] {
	return &Discrete[T]{
		EntityBase: event.NewEntityBase(name),
		frames:     NewKeyframeContainer(initial),
	}
}

// Get returns the value at t.
func (c *Discrete[T]) Get(t timing.VTimeInSec) T {
	return c.frames.At(c.frames.Last(t)).Value
}

// SetLast drops everything after t and makes v the value from t on.
func (c *Discrete[T]) SetLast(t timing.VTimeInSec, v T) {
	c.frames.EraseAfter(t)
	c.frames.Insert(t, v)
	c.Changed(t)
}

// SetInsert adds a step at t and keeps the later ones.
func (c *Discrete[T]) SetInsert(t timing.VTimeInSec, v T) {
	c.frames.Insert(t, v)
	c.Changed(t)
}

// SetReplace replaces the steps at t with v.
func (c *Discrete[T]) SetReplace(t timing.VTimeInSec, v T) {
	c.frames.Replace(t, v)
	c.Changed(t)
}

// Frames returns the keyframes of the curve.
func (c *Discrete[T]) Frames() []Keyframe[T] {
	return c.frames.Frames()
}
