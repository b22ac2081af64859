package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/txscope/internal/harness"
	"github.com/roach88/txscope/internal/trace"
)

// TraceReport is the trace command's JSON payload.
type TraceReport struct {
	Scenario string        `json:"scenario"`
	Hash     string        `json:"hash"`
	Events   []trace.Event `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <scenario.yaml>",
		Short: "Print a scenario's adapter-call trace and its hash",
		Long: `Execute a scenario and print the resulting adapter-call trace.

The trace hash is the content-addressed identity of the canonical trace:
two deployments that issue the same begin/commit/rollback/savepoint
sequence produce the same hash, which makes cross-environment comparison a
string equality check.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTrace(opts *RootOptions, path string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return usagef(err, "loading %s", path)
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	result, err := harness.New(logger).Run(scenario)
	if err != nil {
		return usagef(err, "running %s", scenario.Name)
	}

	if p.JSON() {
		return p.OK(TraceReport{
			Scenario: scenario.Name,
			Hash:     result.Hash,
			Events:   result.Trace,
		})
	}

	p.Textf("scenario: %s\nhash: %s\n", scenario.Name, result.Hash)
	for _, ev := range result.Trace {
		if ev.Savepoint != "" {
			p.Textf("%4d  %-22s %-4s %s\n", ev.Seq, ev.Op, ev.Handle, ev.Savepoint)
		} else {
			p.Textf("%4d  %-22s %s\n", ev.Seq, ev.Op, ev.Handle)
		}
	}
	return nil
}
