package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoad_SingleFile(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"deploy.cue": `
connection: primary: {
	driver: "sqlite"
	dsn:    "./app.db"
	policy: "strict"
}
connection: audit: {
	driver: "memory"
	policy: "lenient_promote"
}
`,
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.FileCount)
	require.Len(t, cfg.Connections, 2)

	// Sorted by name.
	assert.Equal(t, "audit", cfg.Connections[0].Name)
	assert.Equal(t, "memory", cfg.Connections[0].Driver)
	assert.Equal(t, "lenient_promote", cfg.Connections[0].Policy)

	assert.Equal(t, "primary", cfg.Connections[1].Name)
	assert.Equal(t, "sqlite", cfg.Connections[1].Driver)
	assert.Equal(t, "./app.db", cfg.Connections[1].DSN)
}

func TestLoad_MultipleFilesUnify(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"base.cue": `
connection: primary: {
	driver: "sqlite"
	dsn:    "./app.db"
}
`,
		"overlay.cue": `
connection: primary: {
	policy:          "strict"
	max_connections: 8
}
`,
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.FileCount)
	require.Len(t, cfg.Connections, 1)

	conn := cfg.Connections[0]
	assert.Equal(t, "sqlite", conn.Driver)
	assert.Equal(t, "strict", conn.Policy)
	assert.Equal(t, 8, conn.MaxConnections)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent"))
		var lerr *LoadError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, ErrCodeNotFound, lerr.Code)
	})

	t.Run("no cue files", func(t *testing.T) {
		_, err := Load(t.TempDir())
		var lerr *LoadError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, ErrCodeNoFiles, lerr.Code)
	})

	t.Run("conflicting values", func(t *testing.T) {
		dir := writeConfigDir(t, map[string]string{
			"a.cue": `connection: primary: driver: "sqlite"`,
			"b.cue": `connection: primary: driver: "memory"`,
		})
		_, err := Load(dir)
		require.Error(t, err)
	})
}

func TestFindCUEFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"b.cue":      "x: 1",
		"a.cue":      "y: 2",
		"notes.txt":  "ignored",
		"c.cue.bak":  "ignored",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.cue"), 0o755))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.cue", filepath.Base(files[0]))
	assert.Equal(t, "b.cue", filepath.Base(files[1]))
}

func TestValidate(t *testing.T) {
	valid := Connection{Name: "primary", Driver: "sqlite", DSN: "./app.db", Policy: "strict"}

	t.Run("valid config", func(t *testing.T) {
		errs := Validate(&Config{Connections: []Connection{valid}})
		assert.Empty(t, errs)
	})

	t.Run("empty config", func(t *testing.T) {
		errs := Validate(&Config{})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no connections")
	})

	t.Run("collects all problems", func(t *testing.T) {
		cfg := &Config{Connections: []Connection{
			{Name: "a", Driver: "sqlite"},                       // missing dsn
			{Name: "b", Driver: "oracle"},                       // unknown driver
			{Name: "c", Driver: "memory", Policy: "relaxed"},    // bad policy
			{Name: "d", Driver: "memory", MaxConnections: -1},   // negative cap
			{Name: "e"},                                          // missing driver
		}}
		errs := Validate(cfg)
		assert.Len(t, errs, 5)
	})

	t.Run("memory driver needs no dsn", func(t *testing.T) {
		errs := Validate(&Config{Connections: []Connection{{Name: "m", Driver: "memory"}}})
		assert.Empty(t, errs)
	})

	t.Run("empty policy defaults", func(t *testing.T) {
		conn := valid
		conn.Policy = ""
		errs := Validate(&Config{Connections: []Connection{conn}})
		assert.Empty(t, errs)
	})
}

func TestBuild(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory and sqlite connections", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.db")
		cfg := &Config{Connections: []Connection{
			{Name: "audit", Driver: "memory", Policy: "lenient_promote"},
			{Name: "primary", Driver: "sqlite", DSN: dbPath},
		}}

		registry, closeAll, err := Build(cfg, logger)
		require.NoError(t, err)
		defer func() { require.NoError(t, closeAll()) }()

		assert.Equal(t, []string{"audit", "primary"}, registry.Names())

		audit, err := registry.Get("audit")
		require.NoError(t, err)
		assert.Equal(t, "lenient_promote", string(audit.Policy()))

		primary, err := registry.Get("primary")
		require.NoError(t, err)
		assert.Equal(t, "strict", string(primary.Policy()), "empty policy defaults to strict")
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		cfg := &Config{Connections: []Connection{{Name: "a", Driver: "oracle"}}}
		_, _, err := Build(cfg, logger)
		require.Error(t, err)
	})
}
