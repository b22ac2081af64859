package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes. Scripts key off these: 1 means the scenarios or the
// configuration are bad, 2 means the invocation itself was.
const (
	ExitOK      = 0
	ExitFailure = 1 // scenarios failed or the configuration is invalid
	ExitUsage   = 2 // the command could not run: bad flags, unreadable input
)

// exitStatus ties an error to the exit code main should use, so commands
// can classify their own failures without printing or exiting themselves.
type exitStatus struct {
	code int
	err  error
}

func (e *exitStatus) Error() string { return e.err.Error() }
func (e *exitStatus) Unwrap() error { return e.err }

// failuref reports a scenario or validation failure (exit 1).
func failuref(format string, args ...any) error {
	return &exitStatus{code: ExitFailure, err: fmt.Errorf(format, args...)}
}

// usagef reports that the command could not run at all (exit 2). cause
// may be nil when the message stands on its own.
func usagef(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		return &exitStatus{code: ExitUsage, err: fmt.Errorf("%s: %w", msg, cause)}
	}
	return &exitStatus{code: ExitUsage, err: errors.New(msg)}
}

// ExitCode picks the process exit code for err. Errors a command did not
// classify count as failures, not usage errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var st *exitStatus
	if errors.As(err, &st) {
		return st.code
	}
	return ExitFailure
}

// Envelope is the top-level shape every command emits in JSON mode:
// exactly one object on stdout, status plus either data or error.
type Envelope struct {
	Status string       `json:"status"`
	Data   any          `json:"data,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail names what went wrong in a machine-matchable way.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// A Printer renders command results. Text mode writes lines for humans;
// JSON mode writes one Envelope to the output writer and keeps all
// diagnostics on the side channel so the stream stays parseable.
type Printer struct {
	json    bool
	verbose bool
	out     io.Writer
	diag    io.Writer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *Printer {
	return &Printer{
		json:    opts.Format == "json",
		verbose: opts.Verbose,
		out:     cmd.OutOrStdout(),
		diag:    cmd.ErrOrStderr(),
	}
}

// JSON reports whether the printer is in JSON mode. Commands with
// structured text output of their own branch on this.
func (p *Printer) JSON() bool { return p.json }

// OK emits a success payload.
func (p *Printer) OK(data any) error {
	if p.json {
		return json.NewEncoder(p.out).Encode(Envelope{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.out, data)
	return err
}

// Fail emits an error payload. It does not decide the exit code; callers
// pair it with failuref or usagef.
func (p *Printer) Fail(code, message string, details any) error {
	if p.json {
		return json.NewEncoder(p.out).Encode(Envelope{
			Status: "error",
			Error:  &ErrorDetail{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(p.out, "error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if p.verbose && details != nil {
		fmt.Fprintf(p.out, "  %v\n", details)
	}
	return nil
}

// Textf writes a line of human-readable output. No-op framing: it exists
// so commands never have to thread the cobra writer around.
func (p *Printer) Textf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Diagf writes a progress line when verbose is on. Diagnostics always go
// to the side channel, never into the JSON stream.
func (p *Printer) Diagf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.diag, format+"\n", args...)
	}
}
