package tracing

import (
	"fmt"
	"sync"

	"github.com/sarchlab/curvesim/datarecording"
	"github.com/sarchlab/curvesim/sim/timing"
	"github.com/tebeka/atexit"
)

// TraceTable is the table the DBTracer writes into.
const TraceTable = "event_trace"

type traceTableEntry struct {
	Kind     string
	Handler  string
	Target   string
	Hash     string
	Time     float64
	OldTime  float64
	NewTime  float64
	LoopTime float64
}

// DBTracer is a tracer that stores records into a DataRecorder.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime timing.VTimeInSec
	reschedules        bool
	terminated         bool
}

// NewDBTracer creates a new DBTracer. The time teller provides the time the
// loop is at when a record is written, which differs from the record time
// when the past is rewritten.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(TraceTable, traceTableEntry{})

	t := &DBTracer{
		timeTeller:  timeTeller,
		backend:     dataRecorder,
		startTime:   timing.MinTime,
		endTime:     timing.Never,
		reschedules: true,
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange only keeps the records whose time is within [start, end].
func (t *DBTracer) SetTimeRange(start, end timing.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = start
	t.endTime = end
}

// SkipReschedules makes the tracer ignore reschedules, which are usually the
// bulk of the records.
func (t *DBTracer) SkipReschedules() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reschedules = false
}

// EventInvoked records an invocation.
func (t *DBTracer) EventInvoked(rec Record) {
	t.write(rec)
}

// EventRescheduled records a reschedule.
func (t *DBTracer) EventRescheduled(rec Record) {
	t.mu.Lock()
	skip := !t.reschedules
	t.mu.Unlock()

	if skip {
		return
	}

	t.write(rec)
}

// EventDropped records a cancellation or an expiration.
func (t *DBTracer) EventDropped(rec Record) {
	t.write(rec)
}

func (t *DBTracer) write(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated || rec.Time < t.startTime || rec.Time > t.endTime {
		return
	}

	t.backend.InsertData(TraceTable, traceTableEntry{
		Kind:     rec.Kind,
		Handler:  rec.Handler,
		Target:   rec.Target,
		Hash:     fmt.Sprintf("%016x", rec.Hash),
		Time:     float64(rec.Time),
		OldTime:  float64(rec.OldTime),
		NewTime:  float64(rec.NewTime),
		LoopTime: float64(t.timeTeller.Now()),
	})
}

// Terminate flushes the records. Records that arrive later are dropped.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true
	t.backend.Flush()
}
