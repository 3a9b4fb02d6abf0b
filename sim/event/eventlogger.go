package event

import (
	"log"

	"github.com/sarchlab/curvesim/sim/hooking"
)

// EventLogger is a hook that prints the lifecycle of events.
type EventLogger struct {
	logger      *log.Logger
	reschedules bool
}

// NewEventLogger returns a new EventLogger which will write into the logger.
// Only invocations are printed unless reschedules is true.
func NewEventLogger(logger *log.Logger, reschedules bool) *EventLogger {
	h := new(EventLogger)

	h.logger = logger
	h.reschedules = reschedules

	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(*Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosBeforeInvoke:
		h.logger.Printf("%s, invoke %s -> %s",
			evt.Time(), evt.Handler().ID(), evt.TargetName())
	case HookPosReschedule:
		if !h.reschedules {
			return
		}

		d := ctx.Detail.(RescheduleDetail)
		h.logger.Printf("%s, reschedule %s -> %s: %s => %s",
			d.Reference, evt.Handler().ID(), evt.TargetName(), d.Old, d.New)
	case HookPosCancel, HookPosExpire:
		h.logger.Printf("%s, %s %s -> %s",
			ctx.Detail, ctx.Pos.Name, evt.Handler().ID(), evt.TargetName())
	}
}
