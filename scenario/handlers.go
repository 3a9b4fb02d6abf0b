package scenario

import (
	"fmt"

	"github.com/sarchlab/curvesim/sim/curve"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
)

type handlerInfo struct {
	handler    event.Handler
	targetKind string
	required   []string
}

// handlers are shared by all the runners. Handlers keep no state of their
// own; the runner is passed in as the loop state.
var handlers = map[string]handlerInfo{
	"threshold": {
		handler:    &thresholdHandler{event.NewHandlerBase("threshold", event.Dependency)},
		targetKind: KindContinuous,
		required:   []string{"threshold"},
	},
	"timer": {
		handler:  &timerHandler{event.NewHandlerBase("timer", event.Once)},
		required: []string{"delay"},
	},
	"watch": {
		handler: &watchHandler{event.NewHandlerBase("watch", event.Trigger)},
	},
	"pulse": {
		handler:  &pulseHandler{event.NewHandlerBase("pulse", event.Repeat)},
		required: []string{"period"},
	},
}

// thresholdHandler fires when a continuous curve reaches a value.
type thresholdHandler struct {
	event.HandlerBase
}

func (h *thresholdHandler) Setup(evt *event.Event, _ event.State) {
	target, _ := evt.Target()
	evt.DependOn(target)
}

func (h *thresholdHandler) PredictInvokeTime(
	ref timing.VTimeInSec,
	evt *event.Event,
	_ event.State,
) timing.VTimeInSec {
	target, _ := evt.Target()
	threshold := evt.Params().Float("threshold", 0)

	return target.(*curve.Continuous).FirstCrossing(ref, threshold)
}

func (h *thresholdHandler) Invoke(
	_ *event.Loop,
	evt *event.Event,
	state event.State,
	now timing.VTimeInSec,
) error {
	state.(*Runner).trace(now, evt,
		fmt.Sprintf("reached %g", evt.Params().Float("threshold", 0)))

	return nil
}

// timerHandler fires once, some delay after it is created. It can flip a
// discrete curve when it fires.
type timerHandler struct {
	event.HandlerBase
}

func (h *timerHandler) Setup(*event.Event, event.State) {}

func (h *timerHandler) PredictInvokeTime(
	ref timing.VTimeInSec,
	evt *event.Event,
	_ event.State,
) timing.VTimeInSec {
	return ref + evt.Params().Time("delay", 0)
}

func (h *timerHandler) Invoke(
	_ *event.Loop,
	evt *event.Event,
	state event.State,
	now timing.VTimeInSec,
) error {
	r := state.(*Runner)
	params := evt.Params()

	if !params.Has("on") {
		r.trace(now, evt, "fired")
		return nil
	}

	on := fmt.Sprint(params["on"])
	value := fmt.Sprint(params["set"])

	d, err := r.discrete(on)
	if err != nil {
		return err
	}

	r.trace(now, evt, fmt.Sprintf("set %s to %s", on, value))
	d.SetLast(now, value)

	return nil
}

// watchHandler reports every change of its target.
type watchHandler struct {
	event.HandlerBase
}

func (h *watchHandler) Setup(evt *event.Event, _ event.State) {
	target, _ := evt.Target()
	evt.DependOn(target)
}

func (h *watchHandler) PredictInvokeTime(
	timing.VTimeInSec,
	*event.Event,
	event.State,
) timing.VTimeInSec {
	return timing.Never
}

func (h *watchHandler) Invoke(
	_ *event.Loop,
	evt *event.Event,
	state event.State,
	now timing.VTimeInSec,
) error {
	r := state.(*Runner)
	target, _ := evt.Target()

	r.trace(now, evt, "now "+valueAt(target, now))

	return nil
}

// pulseHandler fires every period until the optional stop time.
type pulseHandler struct {
	event.HandlerBase
}

func (h *pulseHandler) Setup(*event.Event, event.State) {}

func (h *pulseHandler) PredictInvokeTime(
	ref timing.VTimeInSec,
	evt *event.Event,
	_ event.State,
) timing.VTimeInSec {
	next := ref + evt.Params().Time("period", 0)
	if next > evt.Params().Time("stop", timing.Never) {
		return timing.Never
	}

	return next
}

func (h *pulseHandler) Invoke(
	_ *event.Loop,
	evt *event.Event,
	state event.State,
	now timing.VTimeInSec,
) error {
	state.(*Runner).trace(now, evt, "tick")
	return nil
}

func valueAt(e event.EventEntity, t timing.VTimeInSec) string {
	switch c := e.(type) {
	case *curve.Continuous:
		return fmt.Sprintf("%g", c.Get(t))
	case *curve.Discrete[string]:
		return c.Get(t)
	default:
		return "?"
	}
}
