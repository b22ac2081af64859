package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions carries the flags every subcommand shares.
type RootOptions struct {
	Verbose bool
	Format  string // "text" or "json"
}

// NewRootCommand wires up the txscope command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "txscope",
		Short: "txscope - transaction propagation coordinator",
		Long: "A coordinator for transactional boundaries: propagation modes,\n" +
			"scope lifecycle, suspension and savepoints over pluggable storage adapters.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			switch opts.Format {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text or json)", opts.Format)
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "report progress while running")
	pf.StringVar(&opts.Format, "format", "text", "output format: text or json")

	cmd.AddCommand(
		NewRunCommand(opts),
		NewValidateCommand(opts),
		NewTraceCommand(opts),
		NewModesCommand(opts),
	)

	return cmd
}
