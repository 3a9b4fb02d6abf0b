package event

import (
	"fmt"
	"math"

	"github.com/sarchlab/curvesim/sim/id"
	"github.com/sarchlab/curvesim/sim/timing"
)

// An Event is one occurrence that is going to happen to a target entity. Its
// handler decides when and what. The queue that created the event owns it.
type Event struct {
	params  ParamMap
	target  id.ID
	handler Handler

	// time is the predicted time, the primary sort key in the queue.
	time timing.VTimeInSec

	// lastChange is the earliest time a dependency changed since the queue
	// last reevaluated the event.
	lastChange timing.VTimeInSec

	hash uint64

	queue        *EventQueue
	heapIndex    int
	dependencies []id.ID
	sealed       bool
	cancelled    bool
}

// Params returns the parameters the event was created with.
func (e *Event) Params() ParamMap {
	return e.params
}

// Handler returns the handler that drives the event.
func (e *Event) Handler() Handler {
	return e.handler
}

// TargetID returns the id of the target entity.
func (e *Event) TargetID() id.ID {
	return e.target
}

// Target resolves the target entity. The event does not keep the entity
// alive, so the entity may have expired.
func (e *Event) Target() (EventEntity, RefState) {
	if e.target == 0 || e.queue == nil {
		return nil, RefUnset
	}

	return e.queue.resolve(e.target)
}

// TargetName returns the name of the target, or a placeholder if it is gone.
func (e *Event) TargetName() string {
	ent, state := e.Target()
	if state != RefAlive {
		return "<" + state.String() + ">"
	}

	return ent.Name()
}

// Time returns the predicted time of the event.
func (e *Event) Time() timing.VTimeInSec {
	return e.time
}

// Hash returns the identity of the event. It never changes.
func (e *Event) Hash() uint64 {
	return e.hash
}

// IsCancelled tells if the event has been removed from its queue.
func (e *Event) IsCancelled() bool {
	return e.cancelled
}

// IsQueued tells if the event currently sits in the ordering of its queue.
func (e *Event) IsQueued() bool {
	return e.heapIndex >= 0
}

// Dependencies returns the ids of the entities the event depends on.
func (e *Event) Dependencies() []id.ID {
	return e.dependencies
}

// LastChanged returns the earliest change time recorded since the last
// reevaluation, or timing.MinTime if there is none.
func (e *Event) LastChanged() timing.VTimeInSec {
	return e.lastChange
}

// SetLastChanged records that a dependency changed at t. Within a round, the
// earliest time wins, since it covers everything that happens after it. It
// returns true if the recorded time changed.
func (e *Event) SetLastChanged(t timing.VTimeInSec) bool {
	if e.lastChange.IsMin() || t < e.lastChange {
		e.lastChange = t
		return true
	}

	return false
}

// DependOn makes the event reevaluate whenever the entity changes. It can
// only be called from Handler.Setup, before the event is first scheduled.
func (e *Event) DependOn(entity EventEntity) {
	if e.sealed {
		panic(fmt.Sprintf(
			"event: %s declares a dependency after being scheduled", e))
	}

	b := entity.entityBase()
	if b.id == 0 {
		panic(fmt.Sprintf(
			"event: dependency %q of %s is not added to a queue",
			b.name, e))
	}

	for _, dep := range e.dependencies {
		if dep == b.id {
			return
		}
	}

	b.AddDependent(e.hash)
	e.dependencies = append(e.dependencies, b.id)
}

// Reschedule asks the handler for a new time, taking ref as the time from
// which the current state is valid, and moves the event to its new place in
// the queue. It returns false if the event cannot be scheduled anymore
// because it was cancelled or its target expired. An expired target cancels
// the event.
func (e *Event) Reschedule(ref timing.VTimeInSec) bool {
	if e.cancelled || e.queue == nil {
		return false
	}

	if _, state := e.Target(); state != RefAlive {
		e.queue.expire(e, ref)
		return false
	}

	t := e.handler.PredictInvokeTime(ref, e, e.queue.state)
	if math.IsNaN(float64(t)) {
		panic(fmt.Sprintf("event: %s predicted NaN", e))
	}

	e.queue.setTime(e, t, ref)

	return true
}

// Cancel removes the event from its queue. Cancelling twice is fine.
func (e *Event) Cancel(ref timing.VTimeInSec) {
	if e.queue == nil {
		return
	}

	e.queue.remove(e, ref, HookPosCancel)
}

// Less orders events by time, then by hash. Two live events never share a
// hash, so the order is total.
func (e *Event) Less(other *Event) bool {
	if e.time != other.time {
		return e.time < other.time
	}

	return e.hash < other.hash
}

func (e *Event) String() string {
	handlerID := "<nil>"
	if e.handler != nil {
		handlerID = e.handler.ID()
	}

	return fmt.Sprintf("%s@%s#%016x", handlerID, e.time, e.hash)
}
