package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/txscope/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                     `json:"valid"`
	Connections []string                 `json:"connections,omitempty"`
	Errors      []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate deployment configuration",
		Long: `Validate CUE deployment configuration without opening any backend.

Checks that every connection declares a known driver and settlement policy
and that drivers requiring a DSN have one.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)

	cfg, err := config.Load(dir)
	if err != nil {
		if ferr := p.Fail("CONFIG_LOAD_FAILED", err.Error(), nil); ferr != nil {
			return ferr
		}
		return usagef(nil, "configuration could not be loaded")
	}
	p.Diagf("loaded %d CUE file(s), %d connection(s)", cfg.FileCount, len(cfg.Connections))

	result := ValidationResult{Valid: true}
	for _, conn := range cfg.Connections {
		result.Connections = append(result.Connections, conn.Name)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		result.Valid = false
		result.Errors = errs
	}

	if p.JSON() {
		if err := p.OK(result); err != nil {
			return err
		}
	} else if result.Valid {
		p.Textf("valid: %d connection(s)\n", len(result.Connections))
	} else {
		for _, e := range result.Errors {
			p.Textf("invalid: %s\n", e.Error())
		}
	}

	if !result.Valid {
		return failuref("configuration is invalid")
	}
	return nil
}
