package tracing

import (
	"sort"
	"sync"
)

// HandlerCount holds the counters of one handler.
type HandlerCount struct {
	Invocations uint64
	Reschedules uint64
	Cancels     uint64
	Expirations uint64
}

// CountTracer counts records per handler. It is safe to read from another
// goroutine while the loop runs.
type CountTracer struct {
	lock   sync.Mutex
	counts map[string]*HandlerCount
}

// NewCountTracer creates a new CountTracer.
func NewCountTracer() *CountTracer {
	return &CountTracer{
		counts: make(map[string]*HandlerCount),
	}
}

func (t *CountTracer) countOf(handler string) *HandlerCount {
	c, ok := t.counts[handler]
	if !ok {
		c = &HandlerCount{}
		t.counts[handler] = c
	}

	return c
}

// EventInvoked counts an invocation.
func (t *CountTracer) EventInvoked(rec Record) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.countOf(rec.Handler).Invocations++
}

// EventRescheduled counts a reschedule.
func (t *CountTracer) EventRescheduled(rec Record) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.countOf(rec.Handler).Reschedules++
}

// EventDropped counts a cancellation or an expiration.
func (t *CountTracer) EventDropped(rec Record) {
	t.lock.Lock()
	defer t.lock.Unlock()

	c := t.countOf(rec.Handler)
	if rec.Kind == KindExpire {
		c.Expirations++
		return
	}

	c.Cancels++
}

// Handlers returns the ids of the handlers seen so far, sorted.
func (t *CountTracer) Handlers() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	handlers := make([]string, 0, len(t.counts))
	for h := range t.counts {
		handlers = append(handlers, h)
	}

	sort.Strings(handlers)

	return handlers
}

// Count returns the counters of a handler.
func (t *CountTracer) Count(handler string) HandlerCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	c, ok := t.counts[handler]
	if !ok {
		return HandlerCount{}
	}

	return *c
}

// Total returns the sum of the counters of all handlers.
func (t *CountTracer) Total() HandlerCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	var total HandlerCount
	for _, c := range t.counts {
		total.Invocations += c.Invocations
		total.Reschedules += c.Reschedules
		total.Cancels += c.Cancels
		total.Expirations += c.Expirations
	}

	return total
}
