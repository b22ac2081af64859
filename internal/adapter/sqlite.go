package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultMaxConnections caps the SQLite connection pool. Each concurrently
// open physical transaction pins one connection, so the cap bounds how many
// isolated scopes can run at once against one database.
const DefaultMaxConnections = 4

// SQLite implements StorageAdapter over a SQLite database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Savepoints map directly onto SQLite's SAVEPOINT / RELEASE / ROLLBACK TO
// statements, executed inside the handle's transaction.
type SQLite struct {
	db *sql.DB

	mu     sync.Mutex
	nextID int64
}

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// MaxConnections caps concurrently open physical transactions.
	// Zero means DefaultMaxConnections.
	MaxConnections int
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas automatically. For tests, use
// "file::memory:?cache=shared" so all pooled connections see one database.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &SQLite{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database. Outstanding handles become unusable.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for schema setup in tests and tools.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// sqliteHandle wraps one sql.Tx. The embedded id is stable for traces.
type sqliteHandle struct {
	id string
	tx *sql.Tx
}

func (h *sqliteHandle) ID() string { return h.id }

// Tx exposes the transaction for callers that issue statements against the
// handle (user bodies reach it through their scope). Settlement calls stay
// the adapter's exclusive business.
func (h *sqliteHandle) Tx() *sql.Tx { return h.tx }

// Begin opens a new physical transaction.
//
// SQLite transactions are always serializable; BeginOptions.ReadOnly is
// advisory here and not enforced (isolation enforcement is delegated to the
// backend per the adapter contract).
func (s *SQLite) Begin(ctx context.Context, _ BeginOptions) (Handle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("t%d", s.nextID)
	s.mu.Unlock()
	return &sqliteHandle{id: id, tx: tx}, nil
}

func (s *SQLite) handle(h Handle) (*sqliteHandle, error) {
	sh, ok := h.(*sqliteHandle)
	if !ok || sh.tx == nil {
		return nil, fmt.Errorf("foreign handle %T passed to SQLite adapter", h)
	}
	return sh, nil
}

// Commit finalizes the transaction.
func (s *SQLite) Commit(ctx context.Context, h Handle) error {
	sh, err := s.handle(h)
	if err != nil {
		return err
	}
	if err := sh.tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", sh.id, err)
	}
	return nil
}

// Rollback aborts the transaction.
func (s *SQLite) Rollback(ctx context.Context, h Handle) error {
	sh, err := s.handle(h)
	if err != nil {
		return err
	}
	if err := sh.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback %s: %w", sh.id, err)
	}
	return nil
}

// Savepoint creates a named savepoint within the transaction.
func (s *SQLite) Savepoint(ctx context.Context, h Handle, name string) error {
	return s.savepointStmt(ctx, h, "SAVEPOINT", name)
}

// ReleaseSavepoint releases a savepoint, keeping its effects.
func (s *SQLite) ReleaseSavepoint(ctx context.Context, h Handle, name string) error {
	return s.savepointStmt(ctx, h, "RELEASE SAVEPOINT", name)
}

// RollbackToSavepoint undoes all work since the savepoint. The savepoint
// itself remains defined until released, matching SQLite semantics; callers
// never reuse savepoint names within one transaction, so the leftover
// definition is inert.
func (s *SQLite) RollbackToSavepoint(ctx context.Context, h Handle, name string) error {
	return s.savepointStmt(ctx, h, "ROLLBACK TO SAVEPOINT", name)
}

func (s *SQLite) savepointStmt(ctx context.Context, h Handle, verb, name string) error {
	sh, err := s.handle(h)
	if err != nil {
		return err
	}
	// Savepoint names cannot be bound as parameters; validate before
	// interpolating.
	if err := ValidSavepointName(name); err != nil {
		return err
	}
	if _, err := sh.tx.ExecContext(ctx, verb+" "+name); err != nil {
		return fmt.Errorf("%s %s on %s: %w", verb, name, sh.id, err)
	}
	return nil
}
