// Package adapter defines the storage adapter boundary the coordinator talks
// to, plus the SQLite and in-memory recording implementations.
//
// The coordinator never touches a database directly: every physical
// transaction operation goes through StorageAdapter, and every call returns
// an explicit error. Adapter failures are wrapped by the coordinator into
// its ADAPTER_FAILURE taxonomy; the adapter itself stays free of policy.
package adapter

import (
	"context"
	"fmt"
	"regexp"
)

// Handle represents one physical connection/transaction. Handles are opaque
// to callers: the scope that issued Begin owns the handle exclusively, and
// joined descendants receive it by reference only. Only the owning scope's
// coordinator invocation may commit or roll it back.
type Handle interface {
	// ID returns a stable identifier for traces and logs.
	ID() string
}

// BeginOptions configures Begin. Isolation-level enforcement is the
// adapter's concern; the coordinator only passes options through.
type BeginOptions struct {
	// ReadOnly requests a read-only transaction where the backend
	// supports it.
	ReadOnly bool
}

// StorageAdapter supplies the physical transaction operations.
//
// Every method is a suspension point: implementations may block arbitrarily
// and must honor ctx cancellation. Savepoint names are generated by the
// coordinator and match ValidSavepointName.
type StorageAdapter interface {
	// Begin opens a new physical transaction.
	Begin(ctx context.Context, opts BeginOptions) (Handle, error)

	// Commit finalizes the transaction.
	Commit(ctx context.Context, h Handle) error

	// Rollback aborts the transaction.
	Rollback(ctx context.Context, h Handle) error

	// Savepoint creates a named savepoint within the transaction.
	Savepoint(ctx context.Context, h Handle, name string) error

	// ReleaseSavepoint releases a savepoint, keeping its effects.
	ReleaseSavepoint(ctx context.Context, h Handle, name string) error

	// RollbackToSavepoint undoes all work since the savepoint.
	RollbackToSavepoint(ctx context.Context, h Handle, name string) error
}

var savepointNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidSavepointName checks that name is a plain identifier. SQL savepoint
// names are interpolated into statements, so anything else is rejected
// before it reaches a backend.
func ValidSavepointName(name string) error {
	if !savepointNameRE.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q: must match %s", name, savepointNameRE)
	}
	return nil
}
