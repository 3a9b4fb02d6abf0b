package event

import (
	"errors"

	"github.com/sarchlab/curvesim/sim/hooking"
	"github.com/sarchlab/curvesim/sim/timing"
)

// ErrQueueEmpty is returned when popping from a queue without events. It
// only means there is nothing left to do.
var ErrQueueEmpty = errors.New("event: queue is empty")

// ErrMaxIterations is returned when reaching a time takes more invocations
// than allowed, which usually means events keep triggering each other at the
// same time.
var ErrMaxIterations = errors.New("event: too many invocations")

// HookPosBeforeInvoke is triggered before a handler is invoked. The item is
// the *Event.
var HookPosBeforeInvoke = &hooking.HookPos{Name: "BeforeInvoke"}

// HookPosAfterInvoke is triggered after a handler is invoked. The item is the
// *Event and the detail is the error returned by the handler, if any.
var HookPosAfterInvoke = &hooking.HookPos{Name: "AfterInvoke"}

// HookPosReschedule is triggered when an event gets a new time. The detail is
// a RescheduleDetail.
var HookPosReschedule = &hooking.HookPos{Name: "Reschedule"}

// HookPosCancel is triggered when an event is removed from its queue. The
// detail is the reference time of the cancellation.
var HookPosCancel = &hooking.HookPos{Name: "Cancel"}

// HookPosExpire is triggered when an event is dropped because its target
// entity is gone. The detail is the time it was noticed.
var HookPosExpire = &hooking.HookPos{Name: "Expire"}

// RescheduleDetail describes a change of the time of an event.
type RescheduleDetail struct {
	Reference timing.VTimeInSec
	Old       timing.VTimeInSec
	New       timing.VTimeInSec
}
