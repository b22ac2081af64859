package adapter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "txscope_test.db")
	s, err := OpenSQLite(path, SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.DB().Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY, body TEXT NOT NULL)`)
	require.NoError(t, err)
	return s
}

type sqliteCount struct {
	s *SQLite
}

func (c sqliteCount) rows(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, c.s.DB().QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n))
	return n
}

func TestSQLite_CommitPersists(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	count := sqliteCount{s}

	h, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)

	sh, ok := h.(*sqliteHandle)
	require.True(t, ok)
	_, err = sh.Tx().Exec(`INSERT INTO entries (body) VALUES ('a')`)
	require.NoError(t, err)

	require.NoError(t, s.Commit(ctx, h))
	assert.Equal(t, 1, count.rows(t))
}

func TestSQLite_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	count := sqliteCount{s}

	h, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)

	sh := h.(*sqliteHandle)
	_, err = sh.Tx().Exec(`INSERT INTO entries (body) VALUES ('a')`)
	require.NoError(t, err)

	require.NoError(t, s.Rollback(ctx, h))
	assert.Equal(t, 0, count.rows(t))
}

func TestSQLite_SavepointPartialRollback(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	count := sqliteCount{s}

	h, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)
	sh := h.(*sqliteHandle)

	_, err = sh.Tx().Exec(`INSERT INTO entries (body) VALUES ('before')`)
	require.NoError(t, err)

	require.NoError(t, s.Savepoint(ctx, h, "sp_1"))
	_, err = sh.Tx().Exec(`INSERT INTO entries (body) VALUES ('inside')`)
	require.NoError(t, err)

	// Undo only the work since the savepoint.
	require.NoError(t, s.RollbackToSavepoint(ctx, h, "sp_1"))
	require.NoError(t, s.Commit(ctx, h))

	assert.Equal(t, 1, count.rows(t))
	var body string
	require.NoError(t, s.DB().QueryRow(`SELECT body FROM entries`).Scan(&body))
	assert.Equal(t, "before", body)
}

func TestSQLite_SavepointReleaseKeepsWork(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	count := sqliteCount{s}

	h, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)
	sh := h.(*sqliteHandle)

	require.NoError(t, s.Savepoint(ctx, h, "sp_1"))
	_, err = sh.Tx().Exec(`INSERT INTO entries (body) VALUES ('kept')`)
	require.NoError(t, err)
	require.NoError(t, s.ReleaseSavepoint(ctx, h, "sp_1"))

	require.NoError(t, s.Commit(ctx, h))
	assert.Equal(t, 1, count.rows(t))
}

func TestSQLite_DistinctHandleIDs(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	h1, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, h1))

	h2, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Rollback(ctx, h2))

	assert.NotEqual(t, h1.ID(), h2.ID())
}

func TestSQLite_RejectsInvalidSavepointName(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	h, err := s.Begin(ctx, BeginOptions{})
	require.NoError(t, err)
	defer func() { _ = s.Rollback(ctx, h) }()

	assert.Error(t, s.Savepoint(ctx, h, "sp;DROP TABLE entries"))
}
