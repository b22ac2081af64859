package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/txscope/internal/adapter"
	"github.com/roach88/txscope/internal/trace"
)

func TestAssertionValidate(t *testing.T) {
	valid := []Assertion{
		{Type: "trace_count", Op: "begin", Count: 1},
		{Type: "handle_outcome", Handle: "t1", Outcome: "committed"},
		{Type: "no_open_handles"},
		{Type: "savepoint_order", Handle: "t1"},
	}
	for _, a := range valid {
		assert.NoError(t, a.Validate(), "type %s", a.Type)
	}

	invalid := []Assertion{
		{Type: "trace_count"},
		{Type: "handle_outcome", Handle: "t1"},
		{Type: "handle_outcome", Outcome: "committed"},
		{Type: "savepoint_order"},
		{Type: "event_count"},
	}
	for _, a := range invalid {
		assert.Error(t, a.Validate(), "type %s", a.Type)
	}
}

func resultWithTrace(events []trace.Event) *Result {
	rec := trace.NewRecorder()
	for _, ev := range events {
		rec.Record(ev.Op, ev.Handle, ev.Savepoint)
	}
	return &Result{
		Trace:   rec.Events(),
		Adapter: adapter.NewRecording(trace.NewRecorder()),
	}
}

func TestAssertionCheck_TraceCount(t *testing.T) {
	res := resultWithTrace([]trace.Event{
		{Op: trace.OpBegin, Handle: "t1"},
		{Op: trace.OpBegin, Handle: "t2"},
		{Op: trace.OpCommit, Handle: "t1"},
	})

	assert.Empty(t, Assertion{Type: "trace_count", Op: "begin", Count: 2}.Check(res))
	assert.NotEmpty(t, Assertion{Type: "trace_count", Op: "begin", Count: 1}.Check(res))
	assert.Empty(t, Assertion{Type: "trace_count", Op: "rollback", Count: 0}.Check(res))
}

func TestAssertionCheck_SavepointOrder(t *testing.T) {
	t.Run("lifo passes", func(t *testing.T) {
		res := resultWithTrace([]trace.Event{
			{Op: trace.OpBegin, Handle: "t1"},
			{Op: trace.OpSavepoint, Handle: "t1", Savepoint: "sp_1"},
			{Op: trace.OpSavepoint, Handle: "t1", Savepoint: "sp_2"},
			{Op: trace.OpRollbackToSavepoint, Handle: "t1", Savepoint: "sp_2"},
			{Op: trace.OpReleaseSavepoint, Handle: "t1", Savepoint: "sp_1"},
			{Op: trace.OpCommit, Handle: "t1"},
		})
		assert.Empty(t, Assertion{Type: "savepoint_order", Handle: "t1"}.Check(res))
	})

	t.Run("out of order fails", func(t *testing.T) {
		res := resultWithTrace([]trace.Event{
			{Op: trace.OpSavepoint, Handle: "t1", Savepoint: "sp_1"},
			{Op: trace.OpSavepoint, Handle: "t1", Savepoint: "sp_2"},
			{Op: trace.OpReleaseSavepoint, Handle: "t1", Savepoint: "sp_1"},
		})
		assert.NotEmpty(t, Assertion{Type: "savepoint_order", Handle: "t1"}.Check(res))
	})

	t.Run("release without savepoint fails", func(t *testing.T) {
		res := resultWithTrace([]trace.Event{
			{Op: trace.OpReleaseSavepoint, Handle: "t1", Savepoint: "sp_1"},
		})
		assert.NotEmpty(t, Assertion{Type: "savepoint_order", Handle: "t1"}.Check(res))
	})

	t.Run("other handles ignored", func(t *testing.T) {
		res := resultWithTrace([]trace.Event{
			{Op: trace.OpReleaseSavepoint, Handle: "t2", Savepoint: "sp_1"},
		})
		assert.Empty(t, Assertion{Type: "savepoint_order", Handle: "t1"}.Check(res))
	})
}
