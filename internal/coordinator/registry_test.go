package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txscope/internal/adapter"
	"github.com/roach88/txscope/internal/trace"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	orders := New("orders", adapter.NewRecording(trace.NewRecorder()), Options{Logger: discardLogger()})
	audit := New("audit", adapter.NewRecording(trace.NewRecorder()), Options{Logger: discardLogger()})

	require.NoError(t, reg.Register(orders))
	require.NoError(t, reg.Register(audit))
	assert.Equal(t, 2, reg.Len())

	got, err := reg.Get("orders")
	require.NoError(t, err)
	assert.Same(t, orders, got)

	_, err = reg.Get("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	assert.Equal(t, []string{"audit", "orders"}, reg.Names())
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	a := New("orders", adapter.NewRecording(trace.NewRecorder()), Options{Logger: discardLogger()})
	b := New("orders", adapter.NewRecording(trace.NewRecorder()), Options{Logger: discardLogger()})

	require.NoError(t, reg.Register(a))
	err := reg.Register(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders")
}
