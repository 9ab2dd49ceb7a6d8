package loadgen

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// ErrIDSpaceExhausted is returned once every RecordID of the 32-bit space was handed out.
var ErrIDSpaceExhausted = errors.New("record id space exhausted")

// RecordID is the logical id of a vertex, stored as its lookup property.
// It is unique for the whole run and never reissued, not even after the vertex was deleted.
type RecordID uint32

// IDGenerator mints RecordIDs. It is safe for concurrent use.
type IDGenerator struct {
	next atomic.Uint64
}

// NewIDGenerator returns a generator whose first id is 0.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh id. Ids handed out later in real time are never smaller.
// Once the 32-bit id space is used up every call fails with ErrIDSpaceExhausted.
func (g *IDGenerator) Next() (RecordID, error) {
	n := g.next.Add(1) - 1
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%w after %d ids", ErrIDSpaceExhausted, uint64(math.MaxUint32)+1)
	}

	return RecordID(n), nil
}

// Issued returns how many ids were handed out.
func (g *IDGenerator) Issued() uint64 {
	return min(g.next.Load(), math.MaxUint32+1)
}
