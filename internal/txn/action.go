package txn

import "fmt"

// ActionKind identifies the coordinator behavior chosen for a boundary.
type ActionKind string

const (
	// ActionRunDirect invokes the body with the scope binding unchanged.
	// No scope is created and no adapter calls are made.
	ActionRunDirect ActionKind = "run_direct"

	// ActionStartNew begins a new owning physical transaction in the
	// current continuation.
	ActionStartNew ActionKind = "start_new"

	// ActionStartNewIsolated forks the continuation and runs the body in
	// it, decoupled from the caller's lifetime. When Transactional is true
	// a new owning physical transaction is begun inside the fork; when
	// false the body runs with no active scope (NotSupported).
	ActionStartNewIsolated ActionKind = "start_new_isolated"

	// ActionJoin participates in the ancestor's physical transaction.
	// No begin is issued; the boundary is registered in the ancestor's
	// pending-join set until it settles.
	ActionJoin ActionKind = "join"

	// ActionSavepoint creates a savepoint on the owning physical
	// transaction and runs the body under it.
	ActionSavepoint ActionKind = "savepoint"

	// ActionReject refuses to run the boundary; RejectKind says why.
	ActionReject ActionKind = "reject"
)

// RejectKind categorizes propagation contract violations.
type RejectKind string

const (
	// RejectNoActiveTransaction is produced by Mandatory with no ambient
	// scope.
	RejectNoActiveTransaction RejectKind = "no_active_transaction"

	// RejectTransactionAlreadyActive is produced by Never with an ambient
	// scope.
	RejectTransactionAlreadyActive RejectKind = "transaction_already_active"

	// RejectUnknownMode is produced for mode values outside the closed
	// enum. PropagationMode is a string type, so the resolver must handle
	// values no constant names.
	RejectUnknownMode RejectKind = "unknown_mode"
)

// Action is the resolver's decision for one boundary entry.
//
// Kind selects the coordinator behavior; the remaining fields qualify it:
//   - Transactional: only meaningful for ActionStartNewIsolated. False means
//     "isolate without a transaction" (NotSupported inside an active scope).
//   - SuspendAmbient: mark the ambient scope Suspended for the duration of
//     this call chain. Set for RequiresNew and NotSupported with an active
//     scope; deliberately NOT set for RequiredIsolated, which runs as a
//     sibling without touching the ambient scope.
//   - Reject: only meaningful for ActionReject.
type Action struct {
	Kind           ActionKind
	Transactional  bool
	SuspendAmbient bool
	Reject         RejectKind
}

// String renders the action for traces and the CLI decision table.
func (a Action) String() string {
	switch a.Kind {
	case ActionReject:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Reject)
	case ActionStartNewIsolated:
		if !a.Transactional {
			return string(a.Kind) + "(no_transaction)"
		}
		if a.SuspendAmbient {
			return string(a.Kind) + "(suspend_ambient)"
		}
		return string(a.Kind)
	default:
		return string(a.Kind)
	}
}
