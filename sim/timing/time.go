// Package timing defines the logical time used by the event system.
package timing

import (
	"fmt"
	"math"
)

// VTimeInSec defines the time in the simulated space in the unit of second.
// It is a logical time; it only needs to be totally ordered.
type VTimeInSec float64

// MinTime is smaller than any time that can be reached in a simulation. It
// marks values that have not been set yet, such as a change time that has
// not been recorded.
var MinTime = VTimeInSec(math.Inf(-1))

// Never is later than any time that can be reached in a simulation. An event
// whose predicted time is Never is not going to happen unless something
// changes.
var Never = VTimeInSec(math.Inf(1))

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// IsMin returns true if t is the minimum sentinel.
func (t VTimeInSec) IsMin() bool {
	return math.IsInf(float64(t), -1)
}

// IsNever returns true if t is the Never sentinel.
func (t VTimeInSec) IsNever() bool {
	return math.IsInf(float64(t), 1)
}

// String formats the time with a fixed precision so that traces line up.
func (t VTimeInSec) String() string {
	switch {
	case t.IsMin():
		return "min"
	case t.IsNever():
		return "never"
	}

	return fmt.Sprintf("%.3f", float64(t))
}

// Earlier returns the earlier one of the two times.
func Earlier(a, b VTimeInSec) VTimeInSec {
	if a < b {
		return a
	}

	return b
}

// Later returns the later one of the two times.
func Later(a, b VTimeInSec) VTimeInSec {
	if a > b {
		return a
	}

	return b
}
