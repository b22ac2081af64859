package harness

import (
	"fmt"

	"github.com/roach88/txscope/internal/trace"
)

// Assertion validates the final trace and adapter state of a scenario run.
//
// Supported types:
//   - trace_count: exactly Count events with operation Op
//   - handle_outcome: Handle settled as Outcome ("committed"/"rolled_back")
//   - no_open_handles: every begun physical transaction was settled
//   - savepoint_order: savepoint events on Handle appear in LIFO
//     create/close order (each release or rollback-to closes the most
//     recently created open savepoint)
type Assertion struct {
	Type    string `yaml:"type"`
	Op      string `yaml:"op,omitempty"`
	Count   int    `yaml:"count,omitempty"`
	Handle  string `yaml:"handle,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
}

// Validate checks the assertion is well-formed.
func (a Assertion) Validate() error {
	switch a.Type {
	case "trace_count":
		if a.Op == "" {
			return fmt.Errorf("trace_count assertion requires op")
		}
	case "handle_outcome":
		if a.Handle == "" || a.Outcome == "" {
			return fmt.Errorf("handle_outcome assertion requires handle and outcome")
		}
	case "no_open_handles":
	case "savepoint_order":
		if a.Handle == "" {
			return fmt.Errorf("savepoint_order assertion requires handle")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// Check evaluates the assertion against a result, returning a failure
// message or "".
func (a Assertion) Check(res *Result) string {
	switch a.Type {
	case "trace_count":
		count := 0
		for _, ev := range res.Trace {
			if string(ev.Op) == a.Op {
				count++
			}
		}
		if count != a.Count {
			return fmt.Sprintf("trace_count: want %d %q events, got %d", a.Count, a.Op, count)
		}

	case "handle_outcome":
		got := res.Adapter.Outcome(a.Handle)
		if got != a.Outcome {
			return fmt.Sprintf("handle_outcome: handle %s settled %q, want %q", a.Handle, got, a.Outcome)
		}

	case "no_open_handles":
		if n := res.Adapter.OpenHandles(); n != 0 {
			return fmt.Sprintf("no_open_handles: %d handle(s) still open", n)
		}

	case "savepoint_order":
		if msg := checkSavepointOrder(res.Trace, a.Handle); msg != "" {
			return msg
		}
	}
	return ""
}

// checkSavepointOrder verifies one handle's savepoint events close in strict
// reverse order of creation.
func checkSavepointOrder(events []trace.Event, handle string) string {
	var stack []string
	for _, ev := range events {
		if ev.Handle != handle {
			continue
		}
		switch ev.Op {
		case trace.OpSavepoint:
			stack = append(stack, ev.Savepoint)
		case trace.OpReleaseSavepoint, trace.OpRollbackToSavepoint:
			if len(stack) == 0 {
				return fmt.Sprintf("savepoint_order: %s of %q with no open savepoint", ev.Op, ev.Savepoint)
			}
			top := stack[len(stack)-1]
			if top != ev.Savepoint {
				return fmt.Sprintf("savepoint_order: %s of %q but most recent savepoint is %q", ev.Op, ev.Savepoint, top)
			}
			stack = stack[:len(stack)-1]
		}
	}
	return ""
}
