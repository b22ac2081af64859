package txn

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/txscope/internal/adapter"
)

// ScopeState tracks the lifecycle position of a scope.
type ScopeState string

const (
	// StateActive means the scope is bound to a running continuation.
	StateActive ScopeState = "active"

	// StateSuspended means the scope is parked while an isolated or
	// non-transactional boundary runs. Suspension is advisory bookkeeping:
	// the scope's own continuation keeps running and may settle in
	// parallel.
	StateSuspended ScopeState = "suspended"

	// StateSettling means the boundary body has finished and the commit or
	// rollback decision is in progress.
	StateSettling ScopeState = "settling"

	// StateCommitted is terminal.
	StateCommitted ScopeState = "committed"

	// StateRolledBack is terminal.
	StateRolledBack ScopeState = "rolled_back"
)

// Scope is the runtime record of one transactional boundary invocation.
//
// A scope either owns a physical transaction handle (it issued the begin) or
// participates in an ancestor's: joining scopes never attach a handle and
// resolve Handle() through their parent chain. The handle is set at most once
// and never reassigned.
//
// Thread-safety: isolated children may settle concurrently with the parent's
// continuation, so all mutable fields are guarded by mu. The parent pointer,
// id and mode are immutable after construction.
type Scope struct {
	id     uuid.UUID
	mode   PropagationMode
	parent *Scope

	mu            sync.Mutex
	state         ScopeState
	handle        adapter.Handle
	owns          bool
	savepointName string

	// Savepoint bookkeeping lives on the owning scope only. Names form a
	// LIFO stack per physical transaction; spSeq never decreases so names
	// stay unique per nesting episode.
	savepoints []string
	spSeq      int

	// pendingJoins maps joined child ids to their scope records. Mutated
	// only by the coordinator: add on entry, remove on settle.
	pendingJoins map[uuid.UUID]*Scope

	rollbackOnly  bool
	rollbackCause error

	// suspendCount > 0 marks the scope Suspended. A counter, not a flag:
	// two isolated children of the same parent may suspend it in parallel.
	suspendCount int
}

// NewScope creates an Active scope. parent is the scope bound to the
// continuation at entry time, or nil for a root scope; it is used for context
// restoration and join tracking only, never for lifetime control.
func NewScope(id uuid.UUID, mode PropagationMode, parent *Scope) *Scope {
	return &Scope{
		id:           id,
		mode:         mode,
		parent:       parent,
		state:        StateActive,
		pendingJoins: make(map[uuid.UUID]*Scope),
	}
}

// NewSavepointScope creates the Active scope record for a Nested boundary.
// name is the savepoint the boundary runs under; the physical transaction
// stays owned by the ancestor.
func NewSavepointScope(id uuid.UUID, parent *Scope, name string) *Scope {
	s := NewScope(id, Nested, parent)
	s.savepointName = name
	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uuid.UUID { return s.id }

// Mode returns the propagation mode that created this scope.
func (s *Scope) Mode() PropagationMode { return s.mode }

// Parent returns the enclosing scope at creation time, or nil.
func (s *Scope) Parent() *Scope { return s.parent }

// SavepointName returns the savepoint this Nested scope runs under, or "".
func (s *Scope) SavepointName() string { return s.savepointName }

// State returns the current lifecycle state.
func (s *Scope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AttachHandle binds the physical transaction handle this scope owns.
// The handle is set at most once; a second attach is a lifecycle violation.
func (s *Scope) AttachHandle(h adapter.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return &Error{
			Code:    ErrCodeLifecycleViolation,
			Message: "physical handle already attached",
			ScopeID: s.id,
		}
	}
	s.handle = h
	s.owns = true
	return nil
}

// Handle returns the physical transaction handle this scope operates
// against: its own when it owns one, otherwise the nearest ancestor's.
// Returns nil when no handle exists anywhere on the chain.
func (s *Scope) Handle() adapter.Handle {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		return h
	}
	if s.parent != nil {
		return s.parent.Handle()
	}
	return nil
}

// Owns reports whether this scope issued the begin for its handle.
func (s *Scope) Owns() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owns
}

// Owning returns the scope that owns the physical transaction this scope
// participates in: itself when owning, otherwise the nearest owning
// ancestor. Returns nil for scopes with no physical transaction anywhere on
// the chain.
func (s *Scope) Owning() *Scope {
	s.mu.Lock()
	owns := s.owns
	s.mu.Unlock()
	if owns {
		return s
	}
	if s.parent != nil {
		return s.parent.Owning()
	}
	return nil
}

// MarkRollbackOnly flags the owning scope so its settlement must roll back,
// recording the first cause. Called when a joined child fails; the flag
// propagates up the join chain to the scope whose commit would otherwise
// succeed.
func (s *Scope) MarkRollbackOnly(cause error) {
	owner := s.Owning()
	if owner == nil {
		owner = s
	}
	owner.mu.Lock()
	defer owner.mu.Unlock()
	if !owner.rollbackOnly {
		owner.rollbackOnly = true
		owner.rollbackCause = cause
	}
}

// RollbackOnly reports whether settlement must roll back, with the recorded
// cause. Reads the owning scope's flag.
func (s *Scope) RollbackOnly() (bool, error) {
	owner := s.Owning()
	if owner == nil {
		owner = s
	}
	owner.mu.Lock()
	defer owner.mu.Unlock()
	return owner.rollbackOnly, owner.rollbackCause
}

// Suspend parks an Active scope while an isolated or non-transactional
// boundary runs. Counted, so parallel isolated children compose.
func (s *Scope) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspendCount++
	if s.state == StateActive {
		s.state = StateSuspended
	}
}

// Resume reattaches a Suspended scope once the isolated boundary settles.
func (s *Scope) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspendCount > 0 {
		s.suspendCount--
	}
	if s.suspendCount == 0 && s.state == StateSuspended {
		s.state = StateActive
	}
}

// AddJoin registers a joined child. Must be called before the child's body
// runs so a crash mid-body still surfaces via the dangling-join check.
func (s *Scope) AddJoin(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingJoins[child.id] = child
}

// CompleteJoin removes a settled child from the pending set. Returns false
// when the child is no longer registered, which happens when the parent's
// settlement already promoted it under the lenient policy.
func (s *Scope) CompleteJoin(childID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingJoins[childID]; !ok {
		return false
	}
	delete(s.pendingJoins, childID)
	return true
}

// PendingJoins returns the number of joined children not yet settled.
func (s *Scope) PendingJoins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingJoins)
}

// JoinsSnapshot returns the outstanding joined children without removing
// them. Used by lenient promotion, which deregisters each child only after
// re-homing it.
func (s *Scope) JoinsSnapshot() []*Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Scope, 0, len(s.pendingJoins))
	for _, c := range s.pendingJoins {
		out = append(out, c)
	}
	return out
}

// DrainJoins atomically removes and returns all outstanding joined children.
// Used at settlement time: strict policy reports them, lenient policy
// promotes them.
func (s *Scope) DrainJoins() []*Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingJoins) == 0 {
		return nil
	}
	out := make([]*Scope, 0, len(s.pendingJoins))
	for _, c := range s.pendingJoins {
		out = append(out, c)
	}
	s.pendingJoins = make(map[uuid.UUID]*Scope)
	return out
}

// BeginSettlement transitions Active or Suspended to Settling. Settling a
// scope twice is a lifecycle violation.
func (s *Scope) BeginSettlement() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateActive, StateSuspended:
		s.state = StateSettling
		return nil
	default:
		return &Error{
			Code:    ErrCodeLifecycleViolation,
			Message: fmt.Sprintf("cannot settle scope in state %q", s.state),
			ScopeID: s.id,
		}
	}
}

// FinishSettlement records the terminal state.
func (s *Scope) FinishSettlement(committed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if committed {
		s.state = StateCommitted
	} else {
		s.state = StateRolledBack
	}
}

// PushSavepoint reserves the next savepoint name on this owning scope's
// physical transaction. Names are "sp_1", "sp_2", ... by creation order and
// form a LIFO stack.
func (s *Scope) PushSavepoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spSeq++
	name := fmt.Sprintf("sp_%d", s.spSeq)
	s.savepoints = append(s.savepoints, name)
	return name
}

// PopSavepoint releases the most recent savepoint, enforcing LIFO order:
// releasing or rolling back any savepoint other than the top is a lifecycle
// violation.
func (s *Scope) PopSavepoint(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.savepoints)
	if n == 0 || s.savepoints[n-1] != name {
		return &Error{
			Code:    ErrCodeLifecycleViolation,
			Message: fmt.Sprintf("savepoint %q is not the most recent unreleased savepoint", name),
			ScopeID: s.id,
		}
	}
	s.savepoints = s.savepoints[:n-1]
	return nil
}

// SavepointDepth returns the number of unreleased savepoints.
func (s *Scope) SavepointDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.savepoints)
}

// Rehome converts a non-owning joined scope into an owning isolated scope by
// attaching a fresh physical handle. Used by the lenient-promote policy when
// a parent settles with this child still running. The set-at-most-once
// handle invariant holds: a joined scope never attached a handle before.
func (s *Scope) Rehome(h adapter.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return &Error{
			Code:    ErrCodeLifecycleViolation,
			Message: "cannot rehome a scope that already owns a handle",
			ScopeID: s.id,
		}
	}
	s.handle = h
	s.owns = true
	return nil
}

// String renders the scope for logs.
func (s *Scope) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("scope(%s mode=%s state=%s owns=%t joins=%d)",
		s.id, s.mode, s.state, s.owns, len(s.pendingJoins))
}
