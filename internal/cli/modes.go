package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/txscope/internal/txn"
)

// ModeRow is one row of the decision table.
type ModeRow struct {
	Mode      string `json:"mode"`
	NoScope   string `json:"no_active_scope"`
	WithScope string `json:"active_scope"`
}

// NewModesCommand creates the modes command, which prints the propagation
// decision table. The output is generated from the resolver itself, so it
// can never drift from the implementation.
func NewModesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "Print the propagation decision table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModes(rootOpts, cmd)
		},
	}
	return cmd
}

func runModes(opts *RootOptions, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)

	// A throwaway active scope; the resolver only checks presence.
	active := txn.NewScope(txn.UUIDv7Generator{}.NewID(), txn.Required, nil)

	var rows []ModeRow
	for _, mode := range txn.Modes {
		rows = append(rows, ModeRow{
			Mode:      string(mode),
			NoScope:   txn.Resolve(mode, nil).String(),
			WithScope: txn.Resolve(mode, active).String(),
		})
	}

	if p.JSON() {
		return p.OK(rows)
	}

	p.Textf("%-19s %-28s %s\n", "MODE", "NO ACTIVE SCOPE", "ACTIVE SCOPE")
	for _, row := range rows {
		p.Textf("%-19s %-28s %s\n", row.Mode, row.NoScope, row.WithScope)
	}
	return nil
}
