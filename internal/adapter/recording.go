package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/txscope/internal/trace"
)

// Recording implements StorageAdapter in memory, recording every call to a
// trace.Recorder. It is the adapter the conformance harness and most tests
// run against: no database, fully deterministic handle ids ("t1", "t2", ...
// by begin order), and strict bookkeeping that turns protocol misuse into
// errors instead of silent acceptance.
//
// Enforced protocol:
//   - Commit/Rollback only on open handles, exactly once
//   - Savepoint names unique per open handle
//   - Release/RollbackTo only on existing savepoints of an open handle
//
// Thread-safety: safe for concurrent use; isolated scopes begin and settle
// from their own goroutines.
type Recording struct {
	rec *trace.Recorder

	mu      sync.Mutex
	nextID  int64
	open    map[string]*recHandle
	settled map[string]string // handle id -> "committed" | "rolled_back"
}

type recHandle struct {
	id         string
	savepoints map[string]bool
}

func (h *recHandle) ID() string { return h.id }

// NewRecording creates a recording adapter writing to rec.
func NewRecording(rec *trace.Recorder) *Recording {
	return &Recording{
		rec:     rec,
		open:    make(map[string]*recHandle),
		settled: make(map[string]string),
	}
}

// Recorder returns the underlying trace recorder.
func (a *Recording) Recorder() *trace.Recorder { return a.rec }

// OpenHandles returns the number of handles begun but not yet settled.
// Tests assert this is zero after a scenario completes (no leaked physical
// transactions).
func (a *Recording) OpenHandles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// Outcome returns how a handle settled ("committed", "rolled_back") or ""
// while still open or unknown.
func (a *Recording) Outcome(handleID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settled[handleID]
}

// Begin opens a new in-memory transaction handle.
func (a *Recording) Begin(ctx context.Context, _ BeginOptions) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.nextID++
	h := &recHandle{
		id:         fmt.Sprintf("t%d", a.nextID),
		savepoints: make(map[string]bool),
	}
	a.open[h.id] = h
	a.mu.Unlock()

	a.rec.Record(trace.OpBegin, h.id, "")
	return h, nil
}

func (a *Recording) lookup(h Handle) (*recHandle, error) {
	rh, ok := h.(*recHandle)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T passed to recording adapter", h)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.open[rh.id]; !ok {
		if outcome := a.settled[rh.id]; outcome != "" {
			return nil, fmt.Errorf("handle %s already settled (%s)", rh.id, outcome)
		}
		return nil, fmt.Errorf("unknown handle %s", rh.id)
	}
	return rh, nil
}

func (a *Recording) settle(h Handle, op trace.Op, outcome string) error {
	rh, err := a.lookup(h)
	if err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.open, rh.id)
	a.settled[rh.id] = outcome
	a.mu.Unlock()

	a.rec.Record(op, rh.id, "")
	return nil
}

// Commit finalizes the transaction.
func (a *Recording) Commit(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.settle(h, trace.OpCommit, "committed")
}

// Rollback aborts the transaction.
func (a *Recording) Rollback(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.settle(h, trace.OpRollback, "rolled_back")
}

// Savepoint creates a named savepoint on an open handle.
func (a *Recording) Savepoint(ctx context.Context, h Handle, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidSavepointName(name); err != nil {
		return err
	}
	rh, err := a.lookup(h)
	if err != nil {
		return err
	}
	a.mu.Lock()
	if rh.savepoints[name] {
		a.mu.Unlock()
		return fmt.Errorf("savepoint %s already exists on %s", name, rh.id)
	}
	rh.savepoints[name] = true
	a.mu.Unlock()

	a.rec.Record(trace.OpSavepoint, rh.id, name)
	return nil
}

func (a *Recording) dropSavepoint(h Handle, op trace.Op, name string) error {
	rh, err := a.lookup(h)
	if err != nil {
		return err
	}
	a.mu.Lock()
	if !rh.savepoints[name] {
		a.mu.Unlock()
		return fmt.Errorf("no savepoint %s on %s", name, rh.id)
	}
	delete(rh.savepoints, name)
	a.mu.Unlock()

	a.rec.Record(op, rh.id, name)
	return nil
}

// ReleaseSavepoint releases a savepoint, keeping its effects.
func (a *Recording) ReleaseSavepoint(ctx context.Context, h Handle, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.dropSavepoint(h, trace.OpReleaseSavepoint, name)
}

// RollbackToSavepoint undoes all work since the savepoint.
func (a *Recording) RollbackToSavepoint(ctx context.Context, h Handle, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.dropSavepoint(h, trace.OpRollbackToSavepoint, name)
}
