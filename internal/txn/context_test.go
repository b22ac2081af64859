package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Empty(t *testing.T) {
	scope, ok := FromContext(context.Background())
	assert.Nil(t, scope)
	assert.False(t, ok)
}

func TestWith_BindsScope(t *testing.T) {
	ids := newTestIDs()
	scope := NewScope(ids.NewID(), Required, nil)

	ctx, err := With(context.Background(), scope)
	require.NoError(t, err)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, scope, got)
}

func TestWith_InnerBindingShadowsOuter(t *testing.T) {
	ids := newTestIDs()
	outer := NewScope(ids.NewID(), Required, nil)
	inner := NewScope(ids.NewID(), RequiresNew, nil)

	ctx, err := With(context.Background(), outer)
	require.NoError(t, err)
	innerCtx, err := With(ctx, inner)
	require.NoError(t, err)

	got, _ := FromContext(innerCtx)
	assert.Same(t, inner, got)

	// The outer context is untouched.
	got, _ = FromContext(ctx)
	assert.Same(t, outer, got)
}

func TestDetach_HidesAmbientScope(t *testing.T) {
	ids := newTestIDs()
	scope := NewScope(ids.NewID(), Required, nil)
	ctx, err := With(context.Background(), scope)
	require.NoError(t, err)

	detached, err := Detach(ctx)
	require.NoError(t, err)

	got, ok := FromContext(detached)
	assert.Nil(t, got)
	assert.False(t, ok)
}

func TestFork_CarriesScopeWithoutCancellation(t *testing.T) {
	ids := newTestIDs()
	scope := NewScope(ids.NewID(), Required, nil)

	base, cancel := context.WithCancel(context.Background())
	ctx, err := With(base, scope)
	require.NoError(t, err)

	forked, err := Fork(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case <-forked.Done():
		t.Fatal("forked context must outlive the parent's cancellation")
	default:
	}

	got, ok := FromContext(forked)
	require.True(t, ok)
	assert.Same(t, scope, got)
}

func TestContextPrimitives_NilContext(t *testing.T) {
	ids := newTestIDs()
	scope := NewScope(ids.NewID(), Required, nil)

	_, err := With(nil, scope) //nolint:staticcheck
	require.Error(t, err)
	assert.True(t, IsContextUnavailable(err))

	_, err = Detach(nil) //nolint:staticcheck
	require.Error(t, err)
	assert.True(t, IsContextUnavailable(err))

	_, err = Fork(nil) //nolint:staticcheck
	require.Error(t, err)
	assert.True(t, IsContextUnavailable(err))
}
