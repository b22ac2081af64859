// Package harness executes conformance scenarios against a real coordinator
// and an in-memory recording adapter.
//
// A scenario is a tree of transactional boundaries with declared modes and
// body outcomes. The harness runs the tree, collects the adapter-call
// trace, checks per-step settlement expectations and trace assertions, and
// optionally compares the canonical trace against a golden file.
//
// Determinism: the coordinator uses a sequence id generator and the
// recording adapter numbers handles by begin order, so a scenario's trace
// is identical on every run. Unawaited (fire-and-forget) bodies are held at
// a gate until all top-level steps have settled; joined children make no
// adapter calls of their own, so the gate keeps traces stable without
// changing what the settlement policies observe. Unawaited isolated
// boundaries have no cross-handle ordering guarantee, so golden scenarios
// avoid them; per-handle assertions remain valid regardless.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/txscope/internal/adapter"
	"github.com/roach88/txscope/internal/coordinator"
	"github.com/roach88/txscope/internal/trace"
	"github.com/roach88/txscope/internal/txn"
)

// Result is the outcome of one scenario run.
type Result struct {
	// Scenario is the executed scenario.
	Scenario *Scenario

	// Trace is the full adapter-call trace in logical order.
	Trace []trace.Event

	// Hash is the content-addressed identity of the trace.
	Hash string

	// Adapter is the recording adapter, for outcome/open-handle queries.
	Adapter *adapter.Recording

	// Failures lists expectation and assertion mismatches. Empty means
	// the scenario passed.
	Failures []string
}

// Passed reports whether the scenario ran with no mismatches.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Harness runs scenarios.
type Harness struct {
	logger *slog.Logger
}

// New creates a harness. A nil logger selects slog.Default().
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{logger: logger}
}

// Run executes a scenario to completion, including all fire-and-forget
// children, and evaluates its assertions. The returned error covers harness
// infrastructure problems only; semantic mismatches land in
// Result.Failures.
func (h *Harness) Run(s *Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	policy, err := coordinator.ParsePolicy(s.Policy)
	if err != nil {
		return nil, err
	}

	rec := trace.NewRecorder()
	ad := adapter.NewRecording(rec)
	coord := coordinator.New("harness", ad, coordinator.Options{
		Policy: policy,
		IDs:    txn.NewSequenceGenerator(),
		Logger: h.logger,
	})

	r := &runner{coord: coord, gate: make(chan struct{})}
	ctx := context.Background()

	for _, step := range s.Steps {
		err := coord.Run(ctx, txn.PropagationMode(step.Mode), r.body(step, false))
		r.checkExpect(step, err)
	}

	// Release fire-and-forget bodies and wait for their settlement. A
	// released body may register further fire-and-forget children, so
	// drain until the pending list stops growing.
	close(r.gate)
	for drained := 0; ; {
		pend := r.pending()
		if drained == len(pend) {
			break
		}
		for _, p := range pend[drained:] {
			r.checkExpect(p.step, <-p.ch)
			drained++
		}
	}

	res := &Result{
		Scenario: s,
		Trace:    rec.Events(),
		Adapter:  ad,
		Failures: r.failures(),
	}
	hash, err := trace.Hash(s.Name, res.Trace)
	if err != nil {
		return nil, fmt.Errorf("hashing trace: %w", err)
	}
	res.Hash = hash

	for _, a := range s.Assertions {
		if msg := a.Check(res); msg != "" {
			res.Failures = append(res.Failures, msg)
		}
	}

	h.logger.Info("scenario executed",
		"scenario", s.Name, "events", len(res.Trace), "failures", len(res.Failures))
	return res, nil
}

// runner is one scenario execution's mutable state.
type runner struct {
	coord *coordinator.Coordinator
	gate  chan struct{}

	mu    sync.Mutex
	pend  []pendingChild
	fails []string
}

type pendingChild struct {
	step Step
	ch   <-chan error
}

// body builds the BoundaryFunc for a step. gated bodies wait for the
// harness gate before running, so fire-and-forget children stay pending
// until every synchronous step has settled.
func (r *runner) body(step Step, gated bool) coordinator.BoundaryFunc {
	return func(ctx context.Context) error {
		if gated {
			<-r.gate
		}
		for _, child := range step.Children {
			mode := txn.PropagationMode(child.Mode)
			if child.Awaited() {
				err := r.coord.Run(ctx, mode, r.body(child, false))
				r.checkExpect(child, err)
			} else {
				ch := r.coord.RunAsync(ctx, mode, r.body(child, true))
				r.addPending(child, ch)
			}
		}
		if step.Body == "fail" {
			msg := step.Error
			if msg == "" {
				msg = "boundary body failed"
			}
			return errors.New(msg)
		}
		return nil
	}
}

func (r *runner) addPending(step Step, ch <-chan error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pend = append(r.pend, pendingChild{step: step, ch: ch})
}

func (r *runner) pending() []pendingChild {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pendingChild, len(r.pend))
	copy(out, r.pend)
	return out
}

func (r *runner) checkExpect(step Step, err error) {
	got := Classify(err)
	if got == step.Expect {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails = append(r.fails,
		fmt.Sprintf("step mode=%s: settled %q, want %q", step.Mode, got, step.Expect))
}

func (r *runner) failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.fails))
	copy(out, r.fails)
	return out
}

// Classify renders a settlement error for expectation matching: "" for
// success, CODE or CODE/reject_kind for coordinator faults, the plain
// message for application errors.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var te *txn.Error
	if errors.As(err, &te) {
		if te.Code == txn.ErrCodePropagationViolation {
			return string(te.Code) + "/" + string(te.Reject)
		}
		return string(te.Code)
	}
	return err.Error()
}
