package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/txscope/internal/trace"
)

// RunWithGolden executes a scenario and compares its canonical trace
// against the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files are the source of truth for expected adapter-call sequences;
// a diff means the coordinator's begin/commit/rollback/savepoint behavior
// changed.
func RunWithGolden(t *testing.T, h *Harness, scenario *Scenario) *Result {
	t.Helper()

	result, err := h.Run(scenario)
	if err != nil {
		t.Fatalf("running scenario %s: %v", scenario.Name, err)
	}
	for _, failure := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, failure)
	}

	traceJSON, err := trace.MarshalCanonical(trace.Snapshot(scenario.Name, result.Trace))
	if err != nil {
		t.Fatalf("marshaling trace for %s: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return result
}
