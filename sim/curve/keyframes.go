// Package curve provides values that change over simulated time. A curve
// remembers its whole history as keyframes, so that the value at any time
// can be queried and the future can be rewritten from any time on.
package curve

import (
	"sort"

	"github.com/sarchlab/curvesim/sim/timing"
)

// A Keyframe is a value that takes effect at a time.
type Keyframe[T any] struct {
	Time  timing.VTimeInSec
	Value T
}

// A KeyframeContainer keeps keyframes sorted by time. It always holds a
// default keyframe at timing.MinTime, so every time has a keyframe at or
// before it. Several keyframes may share a time; the last one wins.
type KeyframeContainer[T any] struct {
	frames []Keyframe[T]
}

// NewKeyframeContainer creates a container holding only the default
// keyframe.
func NewKeyframeContainer[T any](defaultValue T) *KeyframeContainer[T] {
	return &KeyframeContainer[T]{
		frames: []Keyframe[T]{{Time: timing.MinTime, Value: defaultValue}},
	}
}

// Len returns the number of keyframes, including the default one.
func (c *KeyframeContainer[T]) Len() int {
	return len(c.frames)
}

// At returns the i-th keyframe.
func (c *KeyframeContainer[T]) At(i int) Keyframe[T] {
	return c.frames[i]
}

// Last returns the index of the last keyframe at or before t.
func (c *KeyframeContainer[T]) Last(t timing.VTimeInSec) int {
	i := sort.Search(len(c.frames), func(i int) bool {
		return c.frames[i].Time > t
	})

	if i == 0 {
		return 0
	}

	return i - 1
}

// Insert adds a keyframe after all the keyframes at or before t and returns
// its index.
func (c *KeyframeContainer[T]) Insert(t timing.VTimeInSec, v T) int {
	i := c.Last(t) + 1

	c.frames = append(c.frames, Keyframe[T]{})
	copy(c.frames[i+1:], c.frames[i:])
	c.frames[i] = Keyframe[T]{Time: t, Value: v}

	return i
}

// EraseAfter removes all the keyframes strictly after t. The default
// keyframe is never removed.
func (c *KeyframeContainer[T]) EraseAfter(t timing.VTimeInSec) {
	i := c.Last(t) + 1

	for j := i; j < len(c.frames); j++ {
		c.frames[j] = Keyframe[T]{}
	}

	c.frames = c.frames[:i]
}

// Replace makes v the only keyframe at t.
func (c *KeyframeContainer[T]) Replace(t timing.VTimeInSec, v T) int {
	last := c.Last(t)
	first := last
	for first > 0 && c.frames[first].Time == t {
		first--
	}

	if c.frames[first].Time != t {
		first++
	}

	if first > last {
		return c.Insert(t, v)
	}

	c.frames[first] = Keyframe[T]{Time: t, Value: v}
	c.frames = append(c.frames[:first+1], c.frames[last+1:]...)

	return first
}

// Frames returns a copy of the keyframes.
func (c *KeyframeContainer[T]) Frames() []Keyframe[T] {
	frames := make([]Keyframe[T], len(c.frames))
	copy(frames, c.frames)

	return frames
}
