package txn

import "context"

// Scope propagation rides on context.Context: the active scope is a context
// value carried implicitly through arbitrarily deep call chains. Concurrent
// call chains each hold their own context, so they never observe each
// other's binding.
//
// The three primitives:
//   - FromContext: read the binding ("current").
//   - With: bind a scope for the duration of a call subtree ("runWith").
//     The binding reverts when the caller returns to the parent context,
//     including on error paths - context derivation is immutable.
//   - Fork: detach an observationally independent copy of the binding that
//     also survives the caller's cancellation ("fork"). Any boundary that
//     must outlive its caller uses Fork, never With. This is the primitive
//     that prevents the "parent committed, orphaned child still thinks the
//     transaction is live" hazard from being implicit.

type scopeKey struct{}

// FromContext returns the scope bound to ctx, or (nil, false) when no
// transaction is active in this continuation. A nil ctx reads as no scope.
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

// With returns a context with scope bound as the active scope. Calling With
// without an ambient context is a programming contract violation and fails
// loudly rather than silently no-opping.
func With(ctx context.Context, scope *Scope) (context.Context, error) {
	if ctx == nil {
		return nil, NewContextUnavailableError("txn.With")
	}
	return context.WithValue(ctx, scopeKey{}, scope), nil
}

// Detach returns a context with no active scope, shadowing any ambient
// binding. Used by NotSupported boundaries: the body observes no
// transaction while the suspended ancestor stays parked in the caller's
// continuation.
func Detach(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, NewContextUnavailableError("txn.Detach")
	}
	return context.WithValue(ctx, scopeKey{}, (*Scope)(nil)), nil
}

// Fork returns a context whose binding is an independent copy of ctx's:
// later rebinding in either continuation is invisible to the other, and the
// forked context is not cancelled when ctx's continuation is. Values,
// including the current scope binding, are preserved.
func Fork(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, NewContextUnavailableError("txn.Fork")
	}
	return context.WithoutCancel(ctx), nil
}
