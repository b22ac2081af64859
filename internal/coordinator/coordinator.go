// Package coordinator executes the actions chosen by the propagation
// resolver: it creates, suspends and settles scopes, talks to the storage
// adapter, tracks parent/child join sets, and enforces the pending-joins
// settlement invariant.
//
// One Coordinator exists per logical connection. A physical transaction
// handle is never used concurrently by two scopes: joined work executes
// inline in the joining call chain, and isolated work begins its own handle
// inside a forked continuation.
//
// Boundary entry is split into a synchronous prepare step (resolve, create
// the scope record, register joins) and an execute step (adapter calls, the
// body, settlement). RunAsync performs prepare in the caller's continuation
// before spawning, so a joined child is registered in its ancestor's
// pending set before the caller can possibly settle - the dangling-join
// check never races with registration.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/txscope/internal/adapter"
	"github.com/roach88/txscope/internal/txn"
)

// BoundaryFunc is the zero-argument body of a transactional boundary. The
// context it receives carries the (possibly new) active scope.
type BoundaryFunc func(ctx context.Context) error

// Coordinator orchestrates transactional boundaries for one logical
// connection.
//
// Thread-safety: Run and RunAsync are safe from any goroutine. Scope records
// carry their own locks; the Coordinator itself is immutable after New.
type Coordinator struct {
	name    string
	adapter adapter.StorageAdapter
	policy  Policy
	ids     txn.IDGenerator
	logger  *slog.Logger
	begin   adapter.BeginOptions
}

// Options configures New. Zero values select the defaults: strict policy,
// UUIDv7 scope ids, slog.Default().
type Options struct {
	Policy Policy
	IDs    txn.IDGenerator
	Logger *slog.Logger
	Begin  adapter.BeginOptions
}

// New creates a Coordinator for the named logical connection.
func New(name string, sa adapter.StorageAdapter, opts Options) *Coordinator {
	if opts.Policy == "" {
		opts.Policy = PolicyStrict
	}
	if opts.IDs == nil {
		opts.IDs = txn.UUIDv7Generator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		name:    name,
		adapter: sa,
		policy:  opts.Policy,
		ids:     opts.IDs,
		logger:  opts.Logger.With("connection", name),
		begin:   opts.Begin,
	}
}

// Name returns the logical connection name.
func (c *Coordinator) Name() string { return c.name }

// Policy returns the settlement policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// Run enters a transactional boundary with the requested propagation mode,
// executes fn under the resolved action, settles the scope, and returns
// either fn's own error (re-thrown unchanged after rollback) or a
// coordinator fault (propagation violation, adapter failure, dangling
// join).
func (c *Coordinator) Run(ctx context.Context, mode txn.PropagationMode, fn BoundaryFunc) error {
	b, err := c.prepare(ctx, mode)
	if err != nil {
		return err
	}
	return c.execute(b, fn)
}

// RunAsync enters a boundary whose body runs in its own goroutine and
// returns a buffered channel that receives the settlement result exactly
// once. Callers that never read the channel only ever see the child's error
// if they later check it - exactly the fire-and-forget contract.
//
// Resolution and join registration happen synchronously before RunAsync
// returns; rejections are still delivered via the channel so call sites
// have one result path.
func (c *Coordinator) RunAsync(ctx context.Context, mode txn.PropagationMode, fn BoundaryFunc) <-chan error {
	done := make(chan error, 1)
	b, err := c.prepare(ctx, mode)
	if err != nil {
		done <- err
		return done
	}
	go func() {
		done <- c.execute(b, fn)
	}()
	return done
}

// boundary is one prepared boundary entry.
type boundary struct {
	mode   txn.PropagationMode
	action txn.Action

	// ctx is the continuation the adapter calls run in: the caller's for
	// inline actions, a fork for isolated ones.
	ctx context.Context

	// runCtx is the context the body receives: ctx plus the scope binding
	// (or a detached binding for non-transactional isolation).
	runCtx context.Context

	// scope is this boundary's record; nil for run_direct.
	scope *txn.Scope

	// owner is the scope owning the physical transaction a join or
	// savepoint participates in.
	owner *txn.Scope

	// ambient is the scope suspended for this boundary's duration, to be
	// resumed at exit; nil when nothing was suspended.
	ambient *txn.Scope
}

// prepare resolves the action and builds the scope record. It performs no
// adapter calls and never blocks.
func (c *Coordinator) prepare(ctx context.Context, mode txn.PropagationMode) (*boundary, error) {
	if ctx == nil {
		return nil, txn.NewContextUnavailableError("coordinator.Run")
	}
	current, _ := txn.FromContext(ctx)
	action := txn.Resolve(mode, current)
	b := &boundary{mode: mode, action: action, ctx: ctx, runCtx: ctx}

	switch action.Kind {
	case txn.ActionReject:
		return nil, txn.NewRejectError(mode, action.Reject)

	case txn.ActionRunDirect:
		return b, nil

	case txn.ActionStartNew:
		b.scope = txn.NewScope(c.ids.NewID(), mode, current)

	case txn.ActionJoin:
		owner := current.Owning()
		if owner == nil {
			// The bound scope has no physical transaction anywhere on
			// its chain; nothing to join.
			return nil, &txn.Error{
				Code:    txn.ErrCodeLifecycleViolation,
				Message: "cannot join: ambient scope has no physical transaction",
				ScopeID: current.ID(),
				Mode:    mode,
			}
		}
		child := txn.NewScope(c.ids.NewID(), mode, current)
		// Register before the body runs: a crash mid-body must still
		// surface via the dangling-join check, never hang silently.
		owner.AddJoin(child)
		b.scope = child
		b.owner = owner

	case txn.ActionStartNewIsolated:
		forked, err := txn.Fork(ctx)
		if err != nil {
			return nil, err
		}
		b.ctx = forked
		if action.SuspendAmbient {
			current.Suspend()
			b.ambient = current
		}
		if action.Transactional {
			b.scope = txn.NewScope(c.ids.NewID(), mode, current)
		} else {
			// NotSupported: the body observes no active scope.
			detached, err := txn.Detach(forked)
			if err != nil {
				return nil, err
			}
			b.runCtx = detached
			return b, nil
		}

	case txn.ActionSavepoint:
		owner := current.Owning()
		if owner == nil {
			return nil, &txn.Error{
				Code:    txn.ErrCodeLifecycleViolation,
				Message: "cannot create savepoint: ambient scope has no physical transaction",
				ScopeID: current.ID(),
				Mode:    mode,
			}
		}
		name := owner.PushSavepoint()
		b.scope = txn.NewSavepointScope(c.ids.NewID(), current, name)
		b.owner = owner

	default:
		return nil, txn.NewRejectError(mode, txn.RejectUnknownMode)
	}

	runCtx, err := txn.With(b.ctx, b.scope)
	if err != nil {
		return nil, err
	}
	b.runCtx = runCtx
	return b, nil
}

// execute runs the prepared boundary to settlement.
func (c *Coordinator) execute(b *boundary, fn BoundaryFunc) error {
	// An ambient scope suspended in prepare is resumed whatever happens
	// inside the boundary.
	if b.ambient != nil {
		defer b.ambient.Resume()
	}

	switch b.action.Kind {
	case txn.ActionRunDirect:
		return fn(b.runCtx)

	case txn.ActionStartNew:
		return c.runOwning(b, fn)

	case txn.ActionStartNewIsolated:
		if !b.action.Transactional {
			return fn(b.runCtx)
		}
		return c.runOwning(b, fn)

	case txn.ActionJoin:
		return c.runJoin(b, fn)

	case txn.ActionSavepoint:
		return c.runSavepoint(b, fn)

	default:
		return txn.NewRejectError(b.mode, txn.RejectUnknownMode)
	}
}

// runOwning begins a new physical transaction, runs the body bound to the
// new scope, and settles it.
func (c *Coordinator) runOwning(b *boundary, fn BoundaryFunc) error {
	scope := b.scope

	h, err := c.adapter.Begin(b.ctx, c.begin)
	if err != nil {
		// Failure before a successful begin: nothing to roll back.
		c.abandon(scope)
		return txn.NewAdapterError("begin", scope.ID(), err)
	}
	if err := scope.AttachHandle(h); err != nil {
		// Unreachable for a freshly created scope; settle the orphan
		// handle rather than leak it.
		_ = c.adapter.Rollback(context.WithoutCancel(b.ctx), h)
		c.abandon(scope)
		return err
	}
	c.logger.Debug("transaction begun",
		"scope", scope.ID(), "mode", scope.Mode(), "handle", h.ID())

	// A panicking body must not leak the begun handle: roll back, then
	// let the panic continue unwinding.
	defer func() {
		if r := recover(); r != nil {
			_ = c.settleOwning(b.ctx, scope, fmt.Errorf("boundary body panicked: %v", r))
			panic(r)
		}
	}()

	bodyErr := fn(b.runCtx)
	return c.settleOwning(b.ctx, scope, bodyErr)
}

// runJoin executes a boundary that participates in its ancestor's physical
// transaction. No begin is issued; settlement is bookkeeping plus
// rollback-only flagging.
func (c *Coordinator) runJoin(b *boundary, fn BoundaryFunc) error {
	scope, owner := b.scope, b.owner

	bodyErr := fn(b.runCtx)

	if owner.CompleteJoin(scope.ID()) {
		// Normal path: the ancestor is still pending on us.
		if err := scope.BeginSettlement(); err != nil {
			return err
		}
		if bodyErr != nil {
			// Mandatory propagation up the join chain: the ancestor
			// must not commit even if its own body succeeds.
			scope.MarkRollbackOnly(bodyErr)
			scope.FinishSettlement(false)
			return bodyErr
		}
		scope.FinishSettlement(true)
		return nil
	}

	// The ancestor settled while we were still running. Under
	// lenient-promote we now own a fresh isolated handle; settle it like
	// any owning scope.
	if scope.Owns() {
		c.logger.Debug("joined scope settled after promotion", "scope", scope.ID())
		return c.settleOwning(b.ctx, scope, bodyErr)
	}

	// Strict policy: the ancestor already rolled back and raised the
	// dangling-join fault. This side's work is gone with it.
	c.abandon(scope)
	if bodyErr != nil {
		return bodyErr
	}
	return &txn.Error{
		Code:    txn.ErrCodeDanglingJoinedScope,
		Message: "joined scope outlived its ancestor's settlement; its work was rolled back",
		ScopeID: scope.ID(),
		Mode:    b.mode,
	}
}

// runSavepoint executes a Nested boundary under a savepoint on the owning
// physical transaction. A failure is locally recoverable: the ancestor is
// NOT marked rollback-only.
func (c *Coordinator) runSavepoint(b *boundary, fn BoundaryFunc) error {
	scope, owner := b.scope, b.owner
	name := scope.SavepointName()
	h := owner.Handle()

	if err := c.adapter.Savepoint(b.ctx, h, name); err != nil {
		if popErr := owner.PopSavepoint(name); popErr != nil {
			c.logger.Error("savepoint bookkeeping out of order", "error", popErr)
		}
		c.abandon(scope)
		return txn.NewAdapterError("savepoint", scope.ID(), err)
	}
	c.logger.Debug("savepoint created",
		"scope", scope.ID(), "handle", h.ID(), "savepoint", name)

	// Post-body savepoint operations run on a cancellation-immune context:
	// the savepoint must be closed out even when the body's context died,
	// or the ancestor's transaction is left with a live savepoint it does
	// not know about. A panicking body gets the same cleanup before the
	// panic continues.
	cleanupCtx := context.WithoutCancel(b.ctx)
	defer func() {
		if r := recover(); r != nil {
			_ = c.adapter.RollbackToSavepoint(cleanupCtx, h, name)
			if popErr := owner.PopSavepoint(name); popErr != nil {
				c.logger.Error("savepoint bookkeeping out of order", "error", popErr)
			}
			if scope.BeginSettlement() == nil {
				scope.FinishSettlement(false)
			}
			panic(r)
		}
	}()

	bodyErr := fn(b.runCtx)

	if err := scope.BeginSettlement(); err != nil {
		return err
	}

	if bodyErr != nil {
		rbErr := c.adapter.RollbackToSavepoint(cleanupCtx, h, name)
		if popErr := owner.PopSavepoint(name); popErr != nil {
			c.logger.Error("savepoint bookkeeping out of order", "error", popErr)
		}
		scope.FinishSettlement(false)
		if rbErr != nil {
			return errors.Join(bodyErr, txn.NewAdapterError("rollback_to_savepoint", scope.ID(), rbErr))
		}
		// Re-thrown unchanged; the immediate caller may recover.
		return bodyErr
	}

	if err := c.adapter.ReleaseSavepoint(cleanupCtx, h, name); err != nil {
		// Best-effort: bring the transaction back to the savepoint so the
		// ancestor can still proceed, then surface the adapter failure.
		if rbErr := c.adapter.RollbackToSavepoint(cleanupCtx, h, name); rbErr != nil {
			c.logger.Error("rollback to savepoint after failed release",
				"savepoint", name, "error", rbErr)
		}
		if popErr := owner.PopSavepoint(name); popErr != nil {
			c.logger.Error("savepoint bookkeeping out of order", "error", popErr)
		}
		scope.FinishSettlement(false)
		return txn.NewAdapterError("release_savepoint", scope.ID(), err)
	}

	if popErr := owner.PopSavepoint(name); popErr != nil {
		c.logger.Error("savepoint bookkeeping out of order", "error", popErr)
	}
	scope.FinishSettlement(true)
	return nil
}

// abandon force-settles a scope as rolled back without adapter calls. Used
// for scopes that never acquired (or never owned) a physical transaction.
func (c *Coordinator) abandon(scope *txn.Scope) {
	if err := scope.BeginSettlement(); err != nil {
		c.logger.Error("abandoning scope in unexpected state",
			"scope", scope.ID(), "error", err)
		return
	}
	scope.FinishSettlement(false)
}

func (c *Coordinator) String() string {
	return fmt.Sprintf("coordinator(%s policy=%s)", c.name, c.policy)
}
