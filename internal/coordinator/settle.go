package coordinator

import (
	"context"
	"errors"

	"github.com/roach88/txscope/internal/adapter"
	"github.com/roach88/txscope/internal/txn"
)

// settleOwning finalizes a scope that owns a physical transaction: it
// enforces the pending-joins invariant, then commits or rolls back.
//
// The central rule: commit is never invoked while the pending-joins
// set is non-empty. Strict policy turns outstanding joins into a
// dangling-join fault with a rollback; lenient-promote re-homes each
// outstanding child to its own isolated transaction first.
func (c *Coordinator) settleOwning(ctx context.Context, scope *txn.Scope, bodyErr error) error {
	// Settlement must reach the adapter even when the boundary's context
	// died mid-body: a cancelled or timed-out body still gets its rollback,
	// and a begun handle never stays open just because the context that
	// opened it is gone.
	ctx = context.WithoutCancel(ctx)

	if err := scope.BeginSettlement(); err != nil {
		return err
	}
	h := scope.Handle()

	if scope.PendingJoins() > 0 && c.policy == PolicyLenientPromote {
		c.promoteJoins(ctx, scope)
	}

	// Re-checked after promotion: anything still pending (including a
	// promotion that could not begin its transaction) falls through to
	// the strict fault - committing here would be unsafe either way.
	if pending := scope.PendingJoins(); pending > 0 {
		_ = scope.DrainJoins()
		if err := c.adapter.Rollback(ctx, h); err != nil {
			c.logger.Error("rollback after dangling join failed",
				"scope", scope.ID(), "handle", h.ID(), "error", err)
		}
		scope.FinishSettlement(false)
		fault := txn.NewDanglingJoinError(scope.ID(), pending)
		if bodyErr != nil {
			fault.Err = bodyErr
		}
		c.logger.Warn("scope settled with pending joins",
			"scope", scope.ID(), "pending", pending, "policy", c.policy)
		return fault
	}

	rbOnly, cause := scope.RollbackOnly()
	if bodyErr != nil || rbOnly {
		if err := c.adapter.Rollback(ctx, h); err != nil {
			scope.FinishSettlement(false)
			return errors.Join(bodyErr, txn.NewAdapterError("rollback", scope.ID(), err))
		}
		scope.FinishSettlement(false)
		c.logger.Debug("transaction rolled back",
			"scope", scope.ID(), "handle", h.ID(), "rollback_only", rbOnly)
		if bodyErr != nil {
			// Application errors are re-thrown unchanged.
			return bodyErr
		}
		// Body succeeded, but a joined child failed: silent
		// data-loss-prevention would be silent error-hiding if this
		// returned nil. Propagate the recorded cause.
		if cause != nil {
			return cause
		}
		return &txn.Error{
			Code:    txn.ErrCodeLifecycleViolation,
			Message: "scope marked rollback-only without a cause",
			ScopeID: scope.ID(),
		}
	}

	if err := c.adapter.Commit(ctx, h); err != nil {
		// Best-effort rollback after a failed commit; the handle may
		// already be dead, so its error is only logged.
		if rbErr := c.adapter.Rollback(ctx, h); rbErr != nil {
			c.logger.Debug("rollback after failed commit",
				"scope", scope.ID(), "handle", h.ID(), "error", rbErr)
		}
		scope.FinishSettlement(false)
		return txn.NewAdapterError("commit", scope.ID(), err)
	}
	scope.FinishSettlement(true)
	c.logger.Debug("transaction committed", "scope", scope.ID(), "handle", h.ID())
	return nil
}

// promoteJoins re-homes every outstanding joined child of scope to its own
// isolated physical transaction (lenient-promote policy).
//
// Ordering protocol per child, chosen so the concurrent child settlement in
// runJoin never observes a half-promoted state:
//
//  1. begin a fresh handle
//  2. Rehome the child (it now owns the handle)
//  3. CompleteJoin to deregister it from this scope
//
// The child's own settlement calls CompleteJoin first: if that returns
// false the parent has already passed step 3, which guarantees step 2
// happened, so the child settles its own handle. If the child wins the
// CompleteJoin race instead, it settles as a plain join and the handle
// begun here is orphaned; step 3 returning false tells us to roll it back.
func (c *Coordinator) promoteJoins(ctx context.Context, scope *txn.Scope) {
	for _, child := range scope.JoinsSnapshot() {
		h, err := c.adapter.Begin(ctx, adapter.BeginOptions{})
		if err != nil {
			// Leave the child registered: the strict fallback in
			// settleOwning will roll the parent back rather than
			// commit over in-flight work.
			c.logger.Error("promotion begin failed; falling back to strict settlement",
				"scope", scope.ID(), "child", child.ID(), "error", err)
			return
		}
		if err := child.Rehome(h); err != nil {
			_ = c.adapter.Rollback(ctx, h)
			c.logger.Error("promotion rehome failed",
				"child", child.ID(), "error", err)
			continue
		}
		if !scope.CompleteJoin(child.ID()) {
			// The child settled as a join in the race window; nobody
			// will settle the fresh handle.
			_ = c.adapter.Rollback(ctx, h)
			continue
		}
		c.logger.Warn("joined scope promoted to isolated transaction",
			"scope", scope.ID(), "child", child.ID(), "handle", h.ID())
	}
}
