package config

import (
	"fmt"
	"log/slog"

	"github.com/roach88/txscope/internal/adapter"
	"github.com/roach88/txscope/internal/coordinator"
	"github.com/roach88/txscope/internal/trace"
)

// Build constructs the coordinator registry from a validated configuration:
// one adapter and one coordinator per connection. The returned close
// function releases every backend that was opened; it is safe to call even
// after a partial failure.
func Build(cfg *Config, logger *slog.Logger) (*coordinator.Registry, func() error, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %s", errs[0].Error())
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := coordinator.NewRegistry()
	var closers []func() error
	closeAll := func() error {
		var lastErr error
		for _, c := range closers {
			if err := c(); err != nil {
				lastErr = err
			}
		}
		return lastErr
	}

	for _, conn := range cfg.Connections {
		policy, err := coordinator.ParsePolicy(conn.Policy)
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		var sa adapter.StorageAdapter
		switch conn.Driver {
		case DriverSQLite:
			sq, err := adapter.OpenSQLite(conn.DSN, adapter.SQLiteOptions{
				MaxConnections: conn.MaxConnections,
			})
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("connection %q: %w", conn.Name, err)
			}
			closers = append(closers, sq.Close)
			sa = sq
		case DriverMemory:
			sa = adapter.NewRecording(trace.NewRecorder())
		default:
			closeAll()
			return nil, nil, fmt.Errorf("connection %q: unknown driver %q", conn.Name, conn.Driver)
		}

		coord := coordinator.New(conn.Name, sa, coordinator.Options{
			Policy: policy,
			Logger: logger,
		})
		if err := registry.Register(coord); err != nil {
			closeAll()
			return nil, nil, err
		}
		logger.Info("connection configured",
			"connection", conn.Name, "driver", conn.Driver, "policy", policy)
	}

	return registry, closeAll, nil
}
