package config

import (
	"fmt"

	"github.com/roach88/txscope/internal/coordinator"
)

// ValidationError describes one problem with a loaded configuration.
type ValidationError struct {
	Connection string `json:"connection,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Connection != "" && e.Field != "" {
		return fmt.Sprintf("connection %q: %s: %s", e.Connection, e.Field, e.Message)
	}
	if e.Connection != "" {
		return fmt.Sprintf("connection %q: %s", e.Connection, e.Message)
	}
	return e.Message
}

// Validate checks a loaded configuration for consistency: at least one
// connection, known drivers and policies, a DSN wherever the driver needs
// one. All problems are collected, not just the first.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if len(cfg.Connections) == 0 {
		errs = append(errs, ValidationError{Message: "no connections defined"})
		return errs
	}

	// Load sorts by name, so duplicates from quoted CUE labels would be
	// adjacent; field labels are unique within one struct, but two files
	// defining the same connection unify rather than duplicate. The check
	// stays for defense against future loaders.
	for i := 1; i < len(cfg.Connections); i++ {
		if cfg.Connections[i].Name == cfg.Connections[i-1].Name {
			errs = append(errs, ValidationError{
				Connection: cfg.Connections[i].Name,
				Message:    "duplicate connection name",
			})
		}
	}

	for _, conn := range cfg.Connections {
		switch conn.Driver {
		case DriverSQLite:
			if conn.DSN == "" {
				errs = append(errs, ValidationError{
					Connection: conn.Name,
					Field:      "dsn",
					Message:    "sqlite driver requires a dsn",
				})
			}
		case DriverMemory:
			// DSN ignored.
		case "":
			errs = append(errs, ValidationError{
				Connection: conn.Name,
				Field:      "driver",
				Message:    "driver is required",
			})
		default:
			errs = append(errs, ValidationError{
				Connection: conn.Name,
				Field:      "driver",
				Message:    fmt.Sprintf("unknown driver %q (want %q or %q)", conn.Driver, DriverSQLite, DriverMemory),
			})
		}

		if err := coordinator.ValidatePolicy(coordinator.Policy(conn.Policy)); err != nil {
			errs = append(errs, ValidationError{
				Connection: conn.Name,
				Field:      "policy",
				Message:    err.Error(),
			})
		}

		if conn.MaxConnections < 0 {
			errs = append(errs, ValidationError{
				Connection: conn.Name,
				Field:      "max_connections",
				Message:    "must be >= 0",
			})
		}
	}

	return errs
}
