package txn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	ids := newTestIDs()
	scopeID := ids.NewID()

	reject := NewRejectError(Mandatory, RejectNoActiveTransaction)
	adapterErr := NewAdapterError("begin", scopeID, errors.New("disk full"))
	dangling := NewDanglingJoinError(scopeID, 2)
	ctxErr := NewContextUnavailableError("txn.With")

	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"propagation violation", reject, IsPropagationViolation},
		{"adapter failure", adapterErr, IsAdapterFailure},
		{"dangling join", dangling, IsDanglingJoin},
		{"context unavailable", ctxErr, IsContextUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			// Classification survives wrapping.
			assert.True(t, tc.check(fmt.Errorf("boundary: %w", tc.err)))
			// No cross-classification.
			for _, other := range cases {
				if other.name != tc.name {
					assert.False(t, other.check(tc.err), "%s classified as %s", tc.name, other.name)
				}
			}
			// Plain errors never classify.
			assert.False(t, tc.check(errors.New("plain")))
			assert.False(t, tc.check(nil))
		})
	}
}

func TestRejectOf(t *testing.T) {
	err := NewRejectError(Never, RejectTransactionAlreadyActive)
	assert.Equal(t, RejectTransactionAlreadyActive, RejectOf(err))
	assert.Equal(t, RejectTransactionAlreadyActive, RejectOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, RejectKind(""), RejectOf(errors.New("plain")))
	assert.Equal(t, RejectKind(""), RejectOf(nil))
}

func TestAdapterError_UnwrapsCause(t *testing.T) {
	ids := newTestIDs()
	cause := errors.New("connection reset")
	err := NewAdapterError("commit", ids.NewID(), cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "commit")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDanglingJoinError_Message(t *testing.T) {
	ids := newTestIDs()
	err := NewDanglingJoinError(ids.NewID(), 3)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrCodeDanglingJoinedScope, terr.Code)
	assert.Contains(t, err.Error(), "3")
}

func TestRejectError_Messages(t *testing.T) {
	err := NewRejectError(Mandatory, RejectNoActiveTransaction)
	assert.Contains(t, err.Error(), string(Mandatory))

	err = NewRejectError(Never, RejectTransactionAlreadyActive)
	assert.Contains(t, err.Error(), string(Never))
}
