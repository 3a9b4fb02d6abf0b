package event

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/sarchlab/curvesim/sim/id"
)

// computeHash derives the identity of an event from what it is about. The
// same target, handler, and parameters always produce the same hash, across
// runs as well, because entity ids are handed out sequentially.
func computeHash(target id.ID, handlerID string, params ParamMap) uint64 {
	d := xxhash.New()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(target))
	_, _ = d.Write(buf[:])

	_, _ = d.WriteString(handlerID)
	_, _ = d.Write([]byte{0})

	for _, k := range params.sortedKeys() {
		fmt.Fprintf(d, "%s=%T:%v", k, params[k], params[k])
		_, _ = d.Write([]byte{0})
	}

	return d.Sum64()
}
