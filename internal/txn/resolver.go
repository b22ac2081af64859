package txn

// Resolve is the propagation decision function: given the requested mode and
// the currently bound scope (nil when no transaction is active), it returns
// the Action the coordinator must execute.
//
// Resolve is pure: it never mutates the scope, never talks to the adapter,
// and its result depends only on its two arguments - never on mode history.
// The decision table:
//
//	mode               current = nil              current = scope
//	required           start_new                  join
//	requires_new       start_new                  start_new_isolated (suspend ambient)
//	required_isolated  start_new                  start_new_isolated (sibling, no suspension)
//	nested             start_new                  savepoint
//	supports           run_direct                 join
//	not_supported      run_direct                 start_new_isolated (no transaction)
//	mandatory          reject(no_active)          join
//	never              run_direct                 reject(already_active)
func Resolve(mode PropagationMode, current *Scope) Action {
	active := current != nil

	switch mode {
	case Required:
		if !active {
			return Action{Kind: ActionStartNew}
		}
		return Action{Kind: ActionJoin}

	case RequiresNew:
		if !active {
			return Action{Kind: ActionStartNew}
		}
		return Action{Kind: ActionStartNewIsolated, Transactional: true, SuspendAmbient: true}

	case RequiredIsolated:
		if !active {
			return Action{Kind: ActionStartNew}
		}
		return Action{Kind: ActionStartNewIsolated, Transactional: true}

	case Nested:
		if !active {
			return Action{Kind: ActionStartNew}
		}
		return Action{Kind: ActionSavepoint}

	case Supports:
		if !active {
			return Action{Kind: ActionRunDirect}
		}
		return Action{Kind: ActionJoin}

	case NotSupported:
		if !active {
			return Action{Kind: ActionRunDirect}
		}
		return Action{Kind: ActionStartNewIsolated, SuspendAmbient: true}

	case Mandatory:
		if !active {
			return Action{Kind: ActionReject, Reject: RejectNoActiveTransaction}
		}
		return Action{Kind: ActionJoin}

	case Never:
		if !active {
			return Action{Kind: ActionRunDirect}
		}
		return Action{Kind: ActionReject, Reject: RejectTransactionAlreadyActive}

	default:
		return Action{Kind: ActionReject, Reject: RejectUnknownMode}
	}
}
