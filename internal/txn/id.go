package txn

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces scope identifiers.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 scope ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, making ids
// sortable by creation time, which is helpful when reading traces of deeply
// nested boundaries.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// SequenceGenerator returns deterministic ids for tests and golden traces.
//
// Ids take the form 00000000-0000-4000-8000-{counter}, so the Nth scope
// created in a test run always gets the same id regardless of wall time.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu sync.Mutex
	n  int64
}

// NewSequenceGenerator creates a generator starting at 1.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// NewID returns the next deterministic id.
func (g *SequenceGenerator) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012x", g.n))
}
