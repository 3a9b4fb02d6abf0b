package event

import (
	"fmt"
	"sync"

	"github.com/sarchlab/curvesim/sim/hooking"
	"github.com/sarchlab/curvesim/sim/id"
	"github.com/sarchlab/curvesim/sim/timing"
)

// DefaultMaxIterations is the default number of invocations allowed within
// one ReachTime call.
const DefaultMaxIterations = 1 << 20

// entityChange is a unit of work: an entity changed from a time on.
type entityChange struct {
	entity id.ID
	time   timing.VTimeInSec
}

func (c entityChange) String() string {
	return fmt.Sprintf("entity %s changed at %s", c.entity, c.time)
}

// A Loop drives the simulation forward. It owns the event queue, invokes the
// events in time order, and keeps predictions up to date when entities
// change.
//
// A Loop is single-threaded. Only Now, Pause, and Continue may be called from
// other goroutines. Changes made from outside the loop should go through
// Batch, which respects Pause.
type Loop struct {
	*hooking.HookableBase

	queue *EventQueue
	state State

	timeLock sync.RWMutex
	now      timing.VTimeInSec

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	// changes are processed first in, first out. Changes that happen while
	// they are processed are appended and handled in the same drain.
	changes  []entityChange
	deferred int
	draining bool

	maxIterations int
	active        *Event
	stepping      bool
}

// A LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxIterations limits the number of invocations per ReachTime call.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		if n <= 0 {
			panic("event: max iterations must be positive")
		}

		l.maxIterations = n
	}
}

// NewLoop creates a Loop. The state is handed to every handler call.
func NewLoop(state State, opts ...LoopOption) *Loop {
	l := &Loop{
		state:         state,
		maxIterations: DefaultMaxIterations,
	}

	l.queue = NewEventQueue(state)
	l.queue.domain = l
	l.HookableBase = l.queue.HookableBase

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Queue returns the queue of the loop.
func (l *Loop) Queue() *EventQueue {
	return l.queue
}

// State returns the state handed to the handlers.
func (l *Loop) State() State {
	return l.state
}

// Now returns the time of the event being handled, or the latest time
// reached.
func (l *Loop) Now() timing.VTimeInSec {
	return l.readNow()
}

func (l *Loop) readNow() timing.VTimeInSec {
	l.timeLock.RLock()
	t := l.now
	l.timeLock.RUnlock()

	return t
}

func (l *Loop) writeNow(t timing.VTimeInSec) {
	l.timeLock.Lock()
	l.now = t
	l.timeLock.Unlock()
}

// ActiveEvent returns the event being invoked, if any.
func (l *Loop) ActiveEvent() *Event {
	return l.active
}

// AddEntity registers an entity with the loop. From then on, its changes
// reevaluate its dependents.
func (l *Loop) AddEntity(e EventEntity) id.ID {
	return l.queue.addEntity(e, l)
}

// RemoveEntity takes an entity out of the simulation.
func (l *Loop) RemoveEntity(e EventEntity) bool {
	return l.queue.RemoveEntity(e)
}

// Entity returns a registered entity by id.
func (l *Loop) Entity(eid id.ID) (EventEntity, bool) {
	return l.queue.Entity(eid)
}

// CreateEvent creates an event and schedules it, taking ref as the time from
// which the current state is valid. If the same event is already live, it
// is returned unchanged.
func (l *Loop) CreateEvent(
	target EventEntity,
	handler Handler,
	params ParamMap,
	ref timing.VTimeInSec,
) *Event {
	evt, created := l.queue.Create(target, handler, params)
	if !created {
		return evt
	}

	if handler.Type() == Trigger {
		l.queue.park(evt)
		return evt
	}

	evt.Reschedule(ref)

	return evt
}

func (l *Loop) entityChanged(b *EntityBase, t timing.VTimeInSec) {
	l.queue.recordChange(b, t)
	l.changes = append(l.changes, entityChange{entity: b.id, time: t})

	if l.deferred == 0 {
		l.updateChanges()
	}
}

// Batch runs fn and reevaluates the events affected by the changes fn made
// once fn returns, instead of after every single change.
//
// Called from outside an invocation, Batch holds the pause lock, so it waits
// while the loop is paused and the monitor never sees half a batch.
func (l *Loop) Batch(fn func()) {
	if !l.stepping && l.deferred == 0 {
		l.pauseLock.Lock()
		defer l.pauseLock.Unlock()
	}

	l.deferred++
	defer func() {
		l.deferred--
		if l.deferred == 0 {
			l.updateChanges()
		}
	}()

	fn()
}

// updateChanges drains the pending entity changes. It never reenters
// itself; changes caused while draining join the current drain.
func (l *Loop) updateChanges() int {
	if l.draining {
		return 0
	}

	l.draining = true
	defer func() { l.draining = false }()

	n := 0
	for len(l.changes) > 0 {
		c := l.changes[0]
		l.changes = l.changes[1:]

		n += l.queue.Reevaluate(c.time)
	}

	return n
}

// ReachTime invokes, in order, all the events up to and including until.
// Invocations may change entities, which reevaluates the affected events
// before the next one is picked.
func (l *Loop) ReachTime(until timing.VTimeInSec) error {
	l.updateChanges()

	iterations := 0
	for l.queue.PeekEarliestTime() <= until {
		iterations++
		if iterations > l.maxIterations {
			return fmt.Errorf("%w: %d invocations before reaching %s",
				ErrMaxIterations, l.maxIterations, until)
		}

		err := l.step()
		if err != nil {
			return err
		}
	}

	if !until.IsNever() && until > l.readNow() {
		l.writeNow(until)
	}

	return nil
}

func (l *Loop) step() error {
	l.pauseLock.Lock()
	defer l.pauseLock.Unlock()

	l.stepping = true
	defer func() { l.stepping = false }()

	evt, err := l.queue.PopEarliest()
	if err != nil {
		return nil
	}

	now := evt.Time()
	if _, state := evt.Target(); state != RefAlive {
		l.queue.expire(evt, now)
		return nil
	}

	l.writeNow(now)

	err = l.invoke(evt, now)

	l.updateChanges()
	l.queue.Settle(evt)

	if err != nil {
		return fmt.Errorf("event: invoking %s on %q at %s: %w",
			evt.handler.ID(), evt.TargetName(), now, err)
	}

	return nil
}

func (l *Loop) invoke(evt *Event, now timing.VTimeInSec) error {
	l.deferred++
	defer func() { l.deferred-- }()

	l.active = evt
	ctx := hooking.HookCtx{
		Domain: l,
		Pos:    HookPosBeforeInvoke,
		Item:   evt,
	}
	l.InvokeHook(ctx)

	err := evt.handler.Invoke(l, evt, l.state, now)

	ctx.Pos = HookPosAfterInvoke
	ctx.Detail = err
	l.InvokeHook(ctx)
	l.active = nil

	if err != nil {
		l.parkFailed(evt)
		return err
	}

	l.afterInvoke(evt, now)

	return nil
}

// afterInvoke decides what becomes of an event that just fired, unless the
// handler already took care of it.
func (l *Loop) afterInvoke(evt *Event, now timing.VTimeInSec) {
	if evt.cancelled || evt.heapIndex >= 0 {
		return
	}

	switch evt.handler.Type() {
	case Once:
		l.queue.remove(evt, now, nil)
	case Repeat:
		evt.Reschedule(now)
	default:
		l.queue.park(evt)
	}
}

// parkFailed keeps an event whose handler failed live, out of the ordering.
func (l *Loop) parkFailed(evt *Event) {
	if evt.cancelled || evt.heapIndex >= 0 {
		return
	}

	l.queue.park(evt)
}

// Pause prevents the loop from invoking more events until Continue is
// called.
func (l *Loop) Pause() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if l.isPaused {
		return
	}

	l.pauseLock.Lock()
	l.isPaused = true
}

// IsPaused tells if Pause has been called without a matching Continue.
func (l *Loop) IsPaused() bool {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	return l.isPaused
}

// Continue allows the loop to invoke events again.
func (l *Loop) Continue() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if !l.isPaused {
		return
	}

	l.pauseLock.Unlock()
	l.isPaused = false
}
