package event

import (
	"fmt"

	"github.com/sarchlab/curvesim/sim/timing"
)

// State is the simulation state passed through to the handlers. The event
// system never looks into it.
type State any

// TriggerType decides when an event fires and what happens to it afterwards.
type TriggerType int

const (
	// Dependency events fire at the predicted time. After firing, they wait
	// until one of their dependencies changes and are then predicted again.
	Dependency TriggerType = iota

	// DependencyImmediately events are first scheduled at the predicted
	// time. A change of a dependency makes them fire at the time of the
	// change. After firing, they wait for the next change.
	DependencyImmediately

	// Trigger events are never predicted. They fire at the time of every
	// change of their dependencies.
	Trigger

	// Repeat events are predicted again from their own firing time after
	// each invocation.
	Repeat

	// Once events are dropped after they fire.
	Once
)

func (t TriggerType) String() string {
	switch t {
	case Dependency:
		return "Dependency"
	case DependencyImmediately:
		return "DependencyImmediately"
	case Trigger:
		return "Trigger"
	case Repeat:
		return "Repeat"
	case Once:
		return "Once"
	default:
		return fmt.Sprintf("TriggerType(%d)", int(t))
	}
}

// A Handler describes one kind of event. Handlers are immutable and shared by
// all the events of their kind.
type Handler interface {
	// ID names the handler. It is part of the identity of every event the
	// handler drives.
	ID() string

	// Type tells when the events of this handler fire.
	Type() TriggerType

	// Setup is called once per event, before it is first scheduled. It is
	// the only place where Event.DependOn may be called.
	Setup(evt *Event, state State)

	// PredictInvokeTime returns the time the event should fire, given that
	// nothing it depends on has changed after ref. Returning timing.Never
	// parks the event until a dependency changes. It must not mutate any
	// entity.
	PredictInvokeTime(
		ref timing.VTimeInSec,
		evt *Event,
		state State,
	) timing.VTimeInSec

	// Invoke applies the effect of the event. It may mutate entities and
	// create or cancel events through the loop.
	Invoke(loop *Loop, evt *Event, state State, now timing.VTimeInSec) error
}

// HandlerBase provides the identity part of a Handler.
type HandlerBase struct {
	id          string
	triggerType TriggerType
}

// NewHandlerBase creates a HandlerBase.
func NewHandlerBase(id string, triggerType TriggerType) HandlerBase {
	if id == "" {
		panic("event: handler id must not be empty")
	}

	return HandlerBase{id: id, triggerType: triggerType}
}

// ID returns the handler id.
func (h HandlerBase) ID() string {
	return h.id
}

// Type returns the trigger type.
func (h HandlerBase) Type() TriggerType {
	return h.triggerType
}
