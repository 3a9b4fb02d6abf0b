package event

import (
	"sort"

	"github.com/sarchlab/curvesim/sim/id"
	"github.com/sarchlab/curvesim/sim/timing"
)

// RefState tells what became of the entity an event refers to.
type RefState int

const (
	// RefUnset means the reference was never bound to an entity.
	RefUnset RefState = iota

	// RefAlive means the entity can be used.
	RefAlive

	// RefExpired means the entity has been removed from the simulation.
	RefExpired
)

func (s RefState) String() string {
	switch s {
	case RefAlive:
		return "alive"
	case RefExpired:
		return "expired"
	default:
		return "unset"
	}
}

// An EventEntity is an object whose value changes over time and that events
// can target or depend on. Implementations embed *EntityBase.
type EventEntity interface {
	// EntityID returns the id assigned when the entity was added to a queue.
	// It is zero before that.
	EntityID() id.ID

	// Name returns a human readable name.
	Name() string

	// LastChanged returns the time of the most recent change.
	LastChanged() timing.VTimeInSec

	// Dependents returns the hashes of the events that depend on the entity,
	// in ascending order.
	Dependents() []uint64

	// AddDependent registers an event as a dependent.
	AddDependent(hash uint64)

	// RemoveDependent unregisters an event.
	RemoveDependent(hash uint64)

	entityBase() *EntityBase
}

type changeListener interface {
	entityChanged(b *EntityBase, t timing.VTimeInSec)
}

// EntityBase keeps the bookkeeping that every EventEntity needs: its
// identity, the time it last changed, and the events that depend on it. The
// dependents are held by hash only and never keep an event alive.
type EntityBase struct {
	id          id.ID
	name        string
	lastChanged timing.VTimeInSec
	dependents  map[uint64]struct{}
	listener    changeListener
}

// NewEntityBase creates an EntityBase.
func NewEntityBase(name string) *EntityBase {
	return &EntityBase{
		name:        name,
		lastChanged: timing.MinTime,
		dependents:  make(map[uint64]struct{}),
	}
}

func (b *EntityBase) entityBase() *EntityBase {
	return b
}

// EntityID returns the id of the entity.
func (b *EntityBase) EntityID() id.ID {
	return b.id
}

// Name returns the name of the entity.
func (b *EntityBase) Name() string {
	return b.name
}

// LastChanged returns the time of the most recent change.
func (b *EntityBase) LastChanged() timing.VTimeInSec {
	return b.lastChanged
}

// Dependents returns the dependent event hashes in ascending order.
func (b *EntityBase) Dependents() []uint64 {
	hashes := make([]uint64, 0, len(b.dependents))
	for h := range b.dependents {
		hashes = append(hashes, h)
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	return hashes
}

// AddDependent registers an event as a dependent. Adding the same event
// again has no effect.
func (b *EntityBase) AddDependent(hash uint64) {
	b.dependents[hash] = struct{}{}
}

// RemoveDependent unregisters an event.
func (b *EntityBase) RemoveDependent(hash uint64) {
	delete(b.dependents, hash)
}

// Changed must be called by the entity whenever its value changes from time
// t on. The dependents are notified, which reevaluates their predictions.
func (b *EntityBase) Changed(t timing.VTimeInSec) {
	b.lastChanged = t

	if b.listener != nil {
		b.listener.entityChanged(b, t)
	}
}
