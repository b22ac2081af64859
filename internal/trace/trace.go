// Package trace records the sequence of storage-adapter calls a coordinator
// run produces.
//
// Traces are the observable output the conformance harness and golden tests
// assert on: for a given scenario, the begin/commit/rollback/savepoint
// sequence per handle must be identical on every run. Events are stamped
// with a monotonic logical sequence number, never wall-clock time, so traces
// compare byte-for-byte across machines and replays.
package trace

import (
	"sync"
	"sync/atomic"
)

// Op identifies a storage adapter operation.
type Op string

const (
	OpBegin               Op = "begin"
	OpCommit              Op = "commit"
	OpRollback            Op = "rollback"
	OpSavepoint           Op = "savepoint"
	OpReleaseSavepoint    Op = "release_savepoint"
	OpRollbackToSavepoint Op = "rollback_to_savepoint"
)

// Event is one adapter call.
type Event struct {
	// Seq is the logical order of the call within the recorder's lifetime.
	Seq int64 `json:"seq"`

	// Op is the adapter operation.
	Op Op `json:"op"`

	// Handle identifies the physical transaction the call ran against.
	Handle string `json:"handle"`

	// Savepoint is the savepoint name for savepoint operations, "" otherwise.
	Savepoint string `json:"savepoint,omitempty"`
}

// Recorder collects adapter call events.
//
// Thread-safety: safe for concurrent use; isolated scopes record from their
// own goroutines. Seq assignment and append happen under one lock so the
// recorded order is the observed call order.
type Recorder struct {
	mu     sync.Mutex
	seq    atomic.Int64
	events []Event
}

// NewRecorder creates an empty recorder starting at seq 1.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event, assigning the next sequence number.
func (r *Recorder) Record(op Op, handle, savepoint string) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := Event{
		Seq:       r.seq.Add(1),
		Op:        op,
		Handle:    handle,
		Savepoint: savepoint,
	}
	r.events = append(r.events, ev)
	return ev
}

// Events returns a copy of all recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset clears events and restarts the sequence at 1. Used by tests that
// reuse one recorder across scenarios.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.seq.Store(0)
}

// ByHandle groups events per handle, preserving per-handle order. Used by
// assertions that check "no interleaving mid-handle" style properties.
func ByHandle(events []Event) map[string][]Event {
	out := make(map[string][]Event)
	for _, ev := range events {
		out[ev.Handle] = append(out[ev.Handle], ev)
	}
	return out
}
