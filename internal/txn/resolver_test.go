package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope(t *testing.T) *Scope {
	t.Helper()
	return NewScope(NewSequenceGenerator().NewID(), Required, nil)
}

func TestResolve_DecisionTable(t *testing.T) {
	cases := []struct {
		mode       PropagationMode
		noScope    Action
		withScope  Action
	}{
		{
			mode:      Required,
			noScope:   Action{Kind: ActionStartNew},
			withScope: Action{Kind: ActionJoin},
		},
		{
			mode:      RequiresNew,
			noScope:   Action{Kind: ActionStartNew},
			withScope: Action{Kind: ActionStartNewIsolated, Transactional: true, SuspendAmbient: true},
		},
		{
			mode:      RequiredIsolated,
			noScope:   Action{Kind: ActionStartNew},
			withScope: Action{Kind: ActionStartNewIsolated, Transactional: true},
		},
		{
			mode:      Nested,
			noScope:   Action{Kind: ActionStartNew},
			withScope: Action{Kind: ActionSavepoint},
		},
		{
			mode:      Supports,
			noScope:   Action{Kind: ActionRunDirect},
			withScope: Action{Kind: ActionJoin},
		},
		{
			mode:      NotSupported,
			noScope:   Action{Kind: ActionRunDirect},
			withScope: Action{Kind: ActionStartNewIsolated, SuspendAmbient: true},
		},
		{
			mode:      Mandatory,
			noScope:   Action{Kind: ActionReject, Reject: RejectNoActiveTransaction},
			withScope: Action{Kind: ActionJoin},
		},
		{
			mode:      Never,
			noScope:   Action{Kind: ActionRunDirect},
			withScope: Action{Kind: ActionReject, Reject: RejectTransactionAlreadyActive},
		},
	}

	require.Len(t, cases, len(Modes), "decision table must cover every mode")

	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			assert.Equal(t, tc.noScope, Resolve(tc.mode, nil))
			assert.Equal(t, tc.withScope, Resolve(tc.mode, testScope(t)))
		})
	}
}

// Never/Mandatory rejections depend only on scope presence, never on mode
// history.
func TestResolve_RejectionsAreStateless(t *testing.T) {
	scope := testScope(t)

	for i := 0; i < 3; i++ {
		// Interleave other resolutions; they must not affect the result.
		Resolve(Required, scope)
		Resolve(RequiresNew, nil)

		got := Resolve(Never, scope)
		require.Equal(t, ActionReject, got.Kind)
		assert.Equal(t, RejectTransactionAlreadyActive, got.Reject)

		got = Resolve(Mandatory, nil)
		require.Equal(t, ActionReject, got.Kind)
		assert.Equal(t, RejectNoActiveTransaction, got.Reject)
	}
}

func TestResolve_UnknownMode(t *testing.T) {
	got := Resolve(PropagationMode("bogus"), nil)
	require.Equal(t, ActionReject, got.Kind)
	assert.Equal(t, RejectUnknownMode, got.Reject)
}

func TestResolve_IsPure(t *testing.T) {
	scope := testScope(t)

	Resolve(Required, scope)
	Resolve(Nested, scope)
	Resolve(Mandatory, scope)

	assert.Equal(t, StateActive, scope.State())
	assert.Equal(t, 0, scope.PendingJoins())
	assert.Equal(t, 0, scope.SavepointDepth())
}

func TestValidateMode(t *testing.T) {
	for _, mode := range Modes {
		assert.NoError(t, ValidateMode(mode))
	}

	invalid := []string{"REQUIRED", "Required", "requires-new", "", "  required  ", "none"}
	for _, s := range invalid {
		t.Run(s, func(t *testing.T) {
			err := ValidateMode(PropagationMode(s))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid propagation mode")
		})
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("requires_new")
	require.NoError(t, err)
	assert.Equal(t, RequiresNew, mode)

	_, err = ParseMode("nope")
	assert.Error(t, err)
}

func TestAction_String(t *testing.T) {
	cases := []struct {
		action Action
		want   string
	}{
		{Action{Kind: ActionStartNew}, "start_new"},
		{Action{Kind: ActionJoin}, "join"},
		{Action{Kind: ActionReject, Reject: RejectNoActiveTransaction}, "reject(no_active_transaction)"},
		{Action{Kind: ActionStartNewIsolated, Transactional: true, SuspendAmbient: true}, "start_new_isolated(suspend_ambient)"},
		{Action{Kind: ActionStartNewIsolated, Transactional: true}, "start_new_isolated"},
		{Action{Kind: ActionStartNewIsolated, SuspendAmbient: true}, "start_new_isolated(no_transaction)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.action.String())
	}
}
