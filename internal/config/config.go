// Package config loads txscope deployment configuration from CUE files.
//
// A deployment declares its logical connections: each one names a storage
// backend and the settlement policy its coordinator enforces. Example:
//
//	connection: primary: {
//		driver: "sqlite"
//		dsn:    "./app.db"
//		policy: "strict"
//	}
//	connection: audit: {
//		driver: "memory"
//		policy: "lenient_promote"
//	}
//
// CUE rather than plain YAML so deployments can share constraint schemas and
// defaults across files; all files in the directory are unified before
// extraction.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Driver names accepted by Build.
const (
	// DriverSQLite backs the connection with a SQLite database; DSN is the
	// database path.
	DriverSQLite = "sqlite"

	// DriverMemory backs the connection with the in-memory recording
	// adapter. Used by demos and scenario runs; DSN is ignored.
	DriverMemory = "memory"
)

// Connection configures one logical connection and its coordinator.
type Connection struct {
	// Name is the registry key. Taken from the CUE field label.
	Name string `json:"-"`

	// Driver selects the storage adapter: "sqlite" or "memory".
	Driver string `json:"driver"`

	// DSN locates the backend (database path for sqlite).
	DSN string `json:"dsn,omitempty"`

	// Policy is the settlement policy: "strict" (default) or
	// "lenient_promote".
	Policy string `json:"policy,omitempty"`

	// MaxConnections caps concurrently open physical transactions for
	// drivers with a connection pool. Zero selects the driver default.
	MaxConnections int `json:"max_connections,omitempty"`
}

// Config is a loaded deployment configuration.
type Config struct {
	// Connections in name order.
	Connections []Connection

	// FileCount is the number of CUE files unified.
	FileCount int
}

// LoadError is an error detected while loading configuration.
type LoadError struct {
	Code    string
	Message string
}

// Load error codes.
const (
	ErrCodeNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeNoFiles     = "CONFIG_NO_FILES"
	ErrCodeLoadFailed  = "CONFIG_LOAD_FAILED"
	ErrCodeBuildFailed = "CONFIG_BUILD_FAILED"
	ErrCodeInvalid     = "CONFIG_INVALID"
)

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FindCUEFiles returns all .cue files directly under dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads and unifies all CUE files in dir and extracts the connection
// map. Validation beyond CUE's own constraints happens in Validate.
func Load(dir string) (*Config, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	result := &Config{FileCount: len(cueFiles)}

	connsVal := value.LookupPath(cue.ParsePath("connection"))
	if connsVal.Exists() {
		iter, iterErr := connsVal.Fields()
		if iterErr != nil {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("iterating connections: %v", iterErr)}
		}
		for iter.Next() {
			var conn Connection
			if err := iter.Value().Decode(&conn); err != nil {
				return nil, &LoadError{
					Code:    ErrCodeBuildFailed,
					Message: fmt.Sprintf("decoding connection %q: %v", iter.Selector(), err),
				}
			}
			conn.Name = iter.Selector().Unquoted()
			result.Connections = append(result.Connections, conn)
		}
	}

	sort.Slice(result.Connections, func(i, j int) bool {
		return result.Connections[i].Name < result.Connections[j].Name
	})
	return result, nil
}
