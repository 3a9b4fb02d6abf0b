package event

import (
	"container/heap"
	"fmt"
	"reflect"
	"sort"

	"github.com/sarchlab/curvesim/sim/hooking"
	"github.com/sarchlab/curvesim/sim/id"
	"github.com/sarchlab/curvesim/sim/timing"
)

// An EventQueue owns all the live events of a simulation and keeps the
// scheduled ones ordered by time and hash. It also owns the registry of
// entities the events refer to.
//
// An event is live from its creation until it is removed. A live event is
// either queued, with a time, or parked, waiting for a dependency to change.
type EventQueue struct {
	*hooking.HookableBase

	state  State
	domain hooking.Hookable

	events eventHeap

	// live holds every event of the queue by hash.
	live map[uint64]*Event

	// changed holds the events with a recorded change that has not been
	// reevaluated yet.
	changed map[uint64]*Event

	entities map[id.ID]EventEntity
	idGen    id.IDGenerator
}

// NewEventQueue creates an EventQueue. The state is handed to the handlers.
func NewEventQueue(state State) *EventQueue {
	q := &EventQueue{
		HookableBase: hooking.NewHookableBase(),
		state:        state,
		events:       make(eventHeap, 0),
		live:         make(map[uint64]*Event),
		changed:      make(map[uint64]*Event),
		entities:     make(map[id.ID]EventEntity),
		idGen:        id.NewIDGenerator(),
	}
	q.domain = q

	heap.Init(&q.events)

	return q
}

// State returns the state handed to the handlers.
func (q *EventQueue) State() State {
	return q.state
}

// AddEntity registers an entity so that events can refer to it. Changes of
// the entity are recorded on its dependents; call Reevaluate to act on them.
func (q *EventQueue) AddEntity(e EventEntity) id.ID {
	return q.addEntity(e, q)
}

func (q *EventQueue) addEntity(e EventEntity, l changeListener) id.ID {
	b := e.entityBase()
	if b.listener != nil {
		panic(fmt.Sprintf("event: entity %q is added twice", b.name))
	}

	b.id = q.idGen.Generate()
	b.listener = l
	q.entities[b.id] = e

	return b.id
}

// RemoveEntity takes an entity out of the simulation. Events targeting it
// are dropped the next time they are touched.
func (q *EventQueue) RemoveEntity(e EventEntity) bool {
	b := e.entityBase()
	if q.entities[b.id] != e {
		return false
	}

	delete(q.entities, b.id)
	b.listener = nil

	return true
}

// Entity returns a registered entity by id.
func (q *EventQueue) Entity(eid id.ID) (EventEntity, bool) {
	e, ok := q.entities[eid]
	return e, ok
}

func (q *EventQueue) resolve(eid id.ID) (EventEntity, RefState) {
	if eid == 0 {
		return nil, RefUnset
	}

	e, ok := q.entities[eid]
	if !ok {
		return nil, RefExpired
	}

	return e, RefAlive
}

// Create makes a new event, or returns the live event with the same target,
// handler, and parameters. A new event has been set up by its handler but
// has no time yet; call Reschedule to place it.
func (q *EventQueue) Create(
	target EventEntity,
	handler Handler,
	params ParamMap,
) (evt *Event, created bool) {
	b := target.entityBase()
	if b.id == 0 || q.entities[b.id] != target {
		panic(fmt.Sprintf("event: target %q is not added to the queue", b.name))
	}

	hash := computeHash(b.id, handler.ID(), params)
	if existing, ok := q.live[hash]; ok {
		q.mustBeSameEvent(existing, b.id, handler, params)
		return existing, false
	}

	evt = &Event{
		params:     params.clone(),
		target:     b.id,
		handler:    handler,
		time:       timing.Never,
		lastChange: timing.MinTime,
		hash:       hash,
		queue:      q,
		heapIndex:  -1,
	}
	q.live[hash] = evt

	handler.Setup(evt, q.state)

	return evt, true
}

func (q *EventQueue) mustBeSameEvent(
	existing *Event,
	target id.ID,
	handler Handler,
	params ParamMap,
) {
	if existing.target == target &&
		existing.handler.ID() == handler.ID() &&
		reflect.DeepEqual(existing.params, params.clone()) {
		return
	}

	panic(fmt.Sprintf(
		"event: hash collision between %s and a new %s event", existing,
		handler.ID()))
}

// Insert places an event that already has a time into the ordering.
// Inserting an event that is already queued only repositions it.
func (q *EventQueue) Insert(evt *Event) {
	switch {
	case evt.queue != q:
		panic(fmt.Sprintf("event: %s belongs to another queue", evt))
	case evt.cancelled:
		panic(fmt.Sprintf("event: %s is cancelled", evt))
	case !evt.sealed:
		panic(fmt.Sprintf("event: %s has never been scheduled", evt))
	case q.live[evt.hash] != evt:
		panic(fmt.Sprintf("event: duplicated key %s", evt))
	}

	q.reposition(evt)
}

// Len returns the number of queued events. Parked events are not counted.
func (q *EventQueue) Len() int {
	return q.events.Len()
}

// NumLive returns the number of live events, queued or parked.
func (q *EventQueue) NumLive() int {
	return len(q.live)
}

// Lookup finds a live event by hash.
func (q *EventQueue) Lookup(hash uint64) (*Event, bool) {
	evt, ok := q.live[hash]
	return evt, ok
}

// Contains tells if the event is live in this queue.
func (q *EventQueue) Contains(evt *Event) bool {
	return evt != nil && q.live[evt.hash] == evt
}

// Events returns the queued events in the order they are going to fire.
func (q *EventQueue) Events() []*Event {
	events := make([]*Event, len(q.events))
	copy(events, q.events)

	sort.Slice(events, func(i, j int) bool { return events[i].Less(events[j]) })

	return events
}

// PeekEarliestTime returns the time of the next event, or timing.Never if no
// event is queued.
func (q *EventQueue) PeekEarliestTime() timing.VTimeInSec {
	if q.events.Len() == 0 {
		return timing.Never
	}

	return q.events[0].time
}

// PeekEarliest returns the next event without taking it out of the queue.
func (q *EventQueue) PeekEarliest() (*Event, error) {
	if q.events.Len() == 0 {
		return nil, ErrQueueEmpty
	}

	return q.events[0], nil
}

// PopEarliest takes the next event out of the ordering. The event stays live
// so that it can be rescheduled; use Remove to drop it for good.
func (q *EventQueue) PopEarliest() (*Event, error) {
	if q.events.Len() == 0 {
		return nil, ErrQueueEmpty
	}

	return heap.Pop(&q.events).(*Event), nil
}

// Remove drops an event. It returns false if the event is not live, for
// example because it was already removed.
func (q *EventQueue) Remove(evt *Event) bool {
	return q.remove(evt, timing.MinTime, HookPosCancel)
}

func (q *EventQueue) remove(
	evt *Event,
	ref timing.VTimeInSec,
	pos *hooking.HookPos,
) bool {
	if !q.Contains(evt) {
		return false
	}

	if evt.heapIndex >= 0 {
		heap.Remove(&q.events, evt.heapIndex)
	}

	delete(q.live, evt.hash)
	delete(q.changed, evt.hash)

	for _, dep := range evt.dependencies {
		if ent, state := q.resolve(dep); state == RefAlive {
			ent.RemoveDependent(evt.hash)
		}
	}

	evt.cancelled = true
	evt.time = timing.Never

	if pos != nil {
		q.invokeHook(pos, evt, ref)
	}

	return true
}

func (q *EventQueue) expire(evt *Event, ref timing.VTimeInSec) {
	q.remove(evt, ref, HookPosExpire)
}

// park keeps the event live but out of the ordering until a dependency
// changes.
func (q *EventQueue) park(evt *Event) {
	q.setTime(evt, timing.Never, evt.time)
}

func (q *EventQueue) setTime(
	evt *Event,
	t timing.VTimeInSec,
	ref timing.VTimeInSec,
) {
	old := evt.time
	evt.sealed = true
	evt.time = t

	if old == t && (evt.heapIndex >= 0 || t.IsNever()) {
		return
	}

	q.reposition(evt)

	q.invokeHook(HookPosReschedule, evt, RescheduleDetail{
		Reference: ref,
		Old:       old,
		New:       t,
	})
}

func (q *EventQueue) reposition(evt *Event) {
	switch {
	case evt.time.IsNever():
		if evt.heapIndex >= 0 {
			heap.Remove(&q.events, evt.heapIndex)
		}
	case evt.heapIndex >= 0:
		heap.Fix(&q.events, evt.heapIndex)
	default:
		heap.Push(&q.events, evt)
	}
}

func (q *EventQueue) invokeHook(pos *hooking.HookPos, evt *Event, detail any) {
	q.InvokeHook(hooking.HookCtx{
		Domain: q.domain,
		Pos:    pos,
		Item:   evt,
		Detail: detail,
	})
}

func (q *EventQueue) entityChanged(b *EntityBase, t timing.VTimeInSec) {
	q.recordChange(b, t)
}

// recordChange marks every live dependent of the entity as changed at t.
// Hashes of events that are gone are dropped from the entity.
func (q *EventQueue) recordChange(b *EntityBase, t timing.VTimeInSec) int {
	n := 0

	for _, hash := range b.Dependents() {
		evt, ok := q.live[hash]
		if !ok {
			b.RemoveDependent(hash)
			continue
		}

		evt.SetLastChanged(t)
		q.changed[hash] = evt
		n++
	}

	return n
}

// NumChanged returns the number of events waiting for reevaluation.
func (q *EventQueue) NumChanged() int {
	return len(q.changed)
}

// Reevaluate brings every event whose dependencies changed at or after from
// up to date. Each event is handled once, with the earliest change recorded
// for it as the reference time. Events that fire before that change keep
// their time and the change, which is applied once they have fired. It returns the number of events that got a
// new prediction.
func (q *EventQueue) Reevaluate(from timing.VTimeInSec) int {
	batch := make([]*Event, 0, len(q.changed))
	for _, evt := range q.changed {
		if evt.lastChange >= from {
			batch = append(batch, evt)
		}
	}

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].lastChange != batch[j].lastChange {
			return batch[i].lastChange < batch[j].lastChange
		}

		return batch[i].hash < batch[j].hash
	})

	n := 0

	for _, evt := range batch {
		if q.consumeChange(evt) {
			n++
		}
	}

	return n
}

// Settle reevaluates an event against a change that it was not due for when
// the change was recorded, because it was scheduled before it. The loop calls
// it once the event has fired. It returns true if the event got a new
// prediction.
func (q *EventQueue) Settle(evt *Event) bool {
	if _, pending := q.changed[evt.hash]; !pending {
		return false
	}

	return q.consumeChange(evt)
}

// consumeChange reevaluates an event from its recorded change. An event that
// fires before the change keeps both its time and the change.
func (q *EventQueue) consumeChange(evt *Event) bool {
	ref := evt.lastChange

	if evt.cancelled {
		delete(q.changed, evt.hash)
		return false
	}

	if evt.time < ref {
		return false
	}

	delete(q.changed, evt.hash)
	evt.lastChange = timing.MinTime

	return q.reevaluateOne(evt, ref)
}

func (q *EventQueue) reevaluateOne(evt *Event, ref timing.VTimeInSec) bool {
	switch evt.handler.Type() {
	case DependencyImmediately, Trigger:
		if _, state := evt.Target(); state != RefAlive {
			q.expire(evt, ref)
			return false
		}

		q.setTime(evt, ref, ref)

		return true
	default:
		return evt.Reschedule(ref)
	}
}

type eventHeap []*Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].Less(h[j])
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *eventHeap) Push(x any) {
	evt := x.(*Event)
	evt.heapIndex = len(*h)
	*h = append(*h, evt)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	evt.heapIndex = -1
	*h = old[:n-1]

	return evt
}
