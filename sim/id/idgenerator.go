// Package id provides the ID generators used in the simulation.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// ID identifies an object in a simulation. IDs handed out by the sequential
// generator are reproducible across runs, which keeps event hashes stable.
type ID uint64

// String formats the ID in decimal.
func (i ID) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// IDGenerator produces unique IDs.
type IDGenerator interface {
	Generate() ID
}

// NewIDGenerator returns a sequential generator whose first ID is 1.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.nextID, 1))
}

// UniqueName returns a globally unique string. It is not reproducible and
// must only be used to name things outside of the simulated world, such as
// a run or an output file.
func UniqueName() string {
	return xid.New().String()
}
