package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/hooking"
	"github.com/sarchlab/curvesim/sim/timing"
)

// CollectTrace lets the tracer collect records from a domain, typically an
// event loop.
func CollectTrace(domain hooking.Hookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook is a hook that converts hook contexts into records.
type traceHook struct {
	t Tracer
}

// Func calls the tracer when the hook is triggered.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(*event.Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case event.HookPosBeforeInvoke:
		rec := newRecord(KindInvoke, evt)
		rec.Time = evt.Time()
		h.t.EventInvoked(rec)
	case event.HookPosReschedule:
		d := ctx.Detail.(event.RescheduleDetail)
		rec := newRecord(KindReschedule, evt)
		rec.Time = d.Reference
		rec.OldTime = d.Old
		rec.NewTime = d.New
		h.t.EventRescheduled(rec)
	case event.HookPosCancel:
		rec := newRecord(KindCancel, evt)
		rec.Time, _ = ctx.Detail.(timing.VTimeInSec)
		h.t.EventDropped(rec)
	case event.HookPosExpire:
		rec := newRecord(KindExpire, evt)
		rec.Time, _ = ctx.Detail.(timing.VTimeInSec)
		h.t.EventDropped(rec)
	}
}

func newRecord(kind string, evt *event.Event) Record {
	return Record{
		Kind:    kind,
		Handler: evt.Handler().ID(),
		Target:  evt.TargetName(),
		Hash:    evt.Hash(),
		OldTime: timing.Never,
		NewTime: timing.Never,
	}
}
