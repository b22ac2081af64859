package txn

import "fmt"

// PropagationMode defines how a transactional boundary behaves relative to
// an ambient transaction scope.
//
// The modes mirror the propagation semantics of enterprise transaction
// managers. Each mode maps, together with the current scope state, to exactly
// one Action via Resolve.
type PropagationMode string

const (
	// Required joins the ambient transaction, or starts a new one when no
	// transaction is active. This is the default and the safest mode for
	// awaited, call-structured work.
	Required PropagationMode = "required"

	// RequiresNew always starts an independent physical transaction. An
	// ambient scope, if any, is suspended for the duration of this call
	// chain (isolation, not mutual exclusion - the ambient scope's own
	// continuation keeps running).
	RequiresNew PropagationMode = "requires_new"

	// RequiredIsolated starts an independent physical transaction without
	// suspending the ambient scope. It is the explicit opt-in for
	// fire-and-forget transactional calls: the new scope's lifetime is
	// deliberately decoupled from the caller's, so it may legitimately
	// outlive a parent that settles before the caller ever awaits it.
	RequiredIsolated PropagationMode = "required_isolated"

	// Nested creates a savepoint within the ambient physical transaction,
	// or starts a new transaction when none is active. A failure inside the
	// nested boundary rolls back to the savepoint only; the ancestor is not
	// poisoned.
	Nested PropagationMode = "nested"

	// Supports joins the ambient transaction when one is active, otherwise
	// runs directly without any transaction.
	Supports PropagationMode = "supports"

	// NotSupported runs without a transaction. An ambient scope is
	// suspended and the body observes no active scope; zero adapter calls
	// are made on its behalf.
	NotSupported PropagationMode = "not_supported"

	// Mandatory joins the ambient transaction and rejects the call when no
	// transaction is active.
	Mandatory PropagationMode = "mandatory"

	// Never runs directly without a transaction and rejects the call when
	// a transaction is active.
	Never PropagationMode = "never"
)

// Modes lists all propagation modes in documentation order.
// The order is stable and used by the CLI decision-table output.
var Modes = []PropagationMode{
	Required,
	RequiresNew,
	RequiredIsolated,
	Nested,
	Supports,
	NotSupported,
	Mandatory,
	Never,
}

// ValidateMode checks that mode is one of the eight propagation modes.
func ValidateMode(mode PropagationMode) error {
	switch mode {
	case Required, RequiresNew, RequiredIsolated, Nested,
		Supports, NotSupported, Mandatory, Never:
		return nil
	default:
		return fmt.Errorf("invalid propagation mode %q: must be one of %v", mode, Modes)
	}
}

// ParseMode converts a string (scenario files, CLI flags) to a
// PropagationMode, validating it.
func ParseMode(s string) (PropagationMode, error) {
	mode := PropagationMode(s)
	if err := ValidateMode(mode); err != nil {
		return "", err
	}
	return mode, nil
}
