package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/txscope/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// RunReport is the run command's JSON payload.
type RunReport struct {
	Scenario string   `json:"scenario"`
	Events   int      `json:"events"`
	Hash     string   `json:"hash"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run one or more scenario files against an in-memory coordinator.

Each scenario describes a tree of transactional boundaries with propagation
modes and body outcomes. The coordinator executes the tree, and the
scenario's expectations and assertions are checked against the resulting
adapter-call trace.

Example:
  txscope run scenarios/required-join.yaml
  txscope run scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	h := harness.New(logger)

	failed := 0
	var reports []RunReport
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return usagef(err, "loading %s", path)
		}
		p.Diagf("running scenario %s (%s)", scenario.Name, path)

		result, err := h.Run(scenario)
		if err != nil {
			return usagef(err, "running %s", scenario.Name)
		}

		report := RunReport{
			Scenario: scenario.Name,
			Events:   len(result.Trace),
			Hash:     result.Hash,
			Passed:   result.Passed(),
			Failures: result.Failures,
		}
		reports = append(reports, report)
		if !result.Passed() {
			failed++
		}

		if !p.JSON() {
			status := "PASS"
			if !result.Passed() {
				status = "FAIL"
			}
			p.Textf("%s  %s (%d events)\n", status, scenario.Name, len(result.Trace))
			for _, f := range result.Failures {
				p.Textf("      %s\n", f)
			}
		}
	}

	if p.JSON() {
		if err := p.OK(reports); err != nil {
			return err
		}
	}

	if failed > 0 {
		return failuref("%d of %d scenario(s) failed", failed, len(paths))
	}
	return nil
}
