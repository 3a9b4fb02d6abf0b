// Package tracing turns the lifecycle hooks of an event loop into records
// that can be counted or stored.
package tracing

import (
	"github.com/sarchlab/curvesim/sim/timing"
)

// Kinds of records.
const (
	KindInvoke     = "invoke"
	KindReschedule = "reschedule"
	KindCancel     = "cancel"
	KindExpire     = "expire"
)

// A Record describes one thing that happened to an event.
type Record struct {
	Kind    string
	Handler string
	Target  string
	Hash    uint64

	// Time is when it happened. For invocations, it is the invocation time.
	// For the other kinds, it is the reference time of the change.
	Time timing.VTimeInSec

	// OldTime and NewTime are the predicted times before and after a
	// reschedule.
	OldTime timing.VTimeInSec
	NewTime timing.VTimeInSec
}

// A Tracer can collect event records.
type Tracer interface {
	// EventInvoked is called right before a handler is invoked.
	EventInvoked(rec Record)

	// EventRescheduled is called when an event gets a new time.
	EventRescheduled(rec Record)

	// EventDropped is called when an event is cancelled or expires.
	EventDropped(rec Record)
}
