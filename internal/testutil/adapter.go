// Package testutil provides fault-injection helpers for coordinator tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/txscope/internal/adapter"
)

// FaultyAdapter wraps a StorageAdapter and fails scripted calls. Failures
// are injected BEFORE delegation, so a failed operation leaves the
// underlying adapter untouched - the same way a network fault would look to
// the coordinator.
//
// Thread-safety: safe for concurrent use.
type FaultyAdapter struct {
	Inner adapter.StorageAdapter

	mu     sync.Mutex
	counts map[string]int
	faults map[string]map[int]error // op -> nth call (1-based) -> error
}

// NewFaultyAdapter wraps inner with no faults scripted.
func NewFaultyAdapter(inner adapter.StorageAdapter) *FaultyAdapter {
	return &FaultyAdapter{
		Inner:  inner,
		counts: make(map[string]int),
		faults: make(map[string]map[int]error),
	}
}

// FailOn scripts the nth call (1-based) of op ("begin", "commit",
// "rollback", "savepoint", "release_savepoint", "rollback_to_savepoint") to
// fail with err.
func (a *FaultyAdapter) FailOn(op string, nth int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.faults[op] == nil {
		a.faults[op] = make(map[int]error)
	}
	a.faults[op][nth] = err
}

// Calls returns how many times op has been attempted (including failed
// attempts).
func (a *FaultyAdapter) Calls(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[op]
}

func (a *FaultyAdapter) check(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[op]++
	if err, ok := a.faults[op][a.counts[op]]; ok {
		return err
	}
	return nil
}

// Begin delegates unless the call is scripted to fail.
func (a *FaultyAdapter) Begin(ctx context.Context, opts adapter.BeginOptions) (adapter.Handle, error) {
	if err := a.check("begin"); err != nil {
		return nil, err
	}
	return a.Inner.Begin(ctx, opts)
}

// Commit delegates unless the call is scripted to fail.
func (a *FaultyAdapter) Commit(ctx context.Context, h adapter.Handle) error {
	if err := a.check("commit"); err != nil {
		return err
	}
	return a.Inner.Commit(ctx, h)
}

// Rollback delegates unless the call is scripted to fail.
func (a *FaultyAdapter) Rollback(ctx context.Context, h adapter.Handle) error {
	if err := a.check("rollback"); err != nil {
		return err
	}
	return a.Inner.Rollback(ctx, h)
}

// Savepoint delegates unless the call is scripted to fail.
func (a *FaultyAdapter) Savepoint(ctx context.Context, h adapter.Handle, name string) error {
	if err := a.check("savepoint"); err != nil {
		return err
	}
	return a.Inner.Savepoint(ctx, h, name)
}

// ReleaseSavepoint delegates unless the call is scripted to fail.
func (a *FaultyAdapter) ReleaseSavepoint(ctx context.Context, h adapter.Handle, name string) error {
	if err := a.check("release_savepoint"); err != nil {
		return err
	}
	return a.Inner.ReleaseSavepoint(ctx, h, name)
}

// RollbackToSavepoint delegates unless the call is scripted to fail.
func (a *FaultyAdapter) RollbackToSavepoint(ctx context.Context, h adapter.Handle, name string) error {
	if err := a.check("rollback_to_savepoint"); err != nil {
		return err
	}
	return a.Inner.RollbackToSavepoint(ctx, h, name)
}

// ErrInjected is a convenience for scripted faults.
var ErrInjected = fmt.Errorf("injected adapter fault")
