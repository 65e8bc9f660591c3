package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a warehouse Writer.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - BatchSize caps rows per INSERT for statement-based backends; zero
//     leaves only the backend's parameter limit. COPY-based backends ignore it.
type Config struct {
	Kind      string
	DSN       string
	BatchSize int
}

// RowsPerStatement is how many rows fit in one INSERT of width columns given
// a backend parameter limit and an optional batch size cap. It is at least 1.
func RowsPerStatement(maxParams, columns, batchSize int) int {
	n := maxParams / max(columns, 1)
	if batchSize > 0 {
		n = min(n, batchSize)
	}
	return max(n, 1)
}

// Writer persists finished warehouse tables.
//
// The warehouse is rebuilt from scratch on every run, so the only write
// operation is a full replace of one table. Each backend implements it in its
// own idiomatic way (SQLite batched INSERT, Postgres COPY, SQL Server
// parameterized VALUES chunks), always inside one transaction so a failed
// write leaves the previous table in place.
type Writer interface {
	// Close releases any backend resources (connections, pools).
	//
	// Callers should treat Close as "call once".
	Close()

	// ReplaceTable drops spec.Name if it exists, creates it from spec and
	// inserts rows. Rows must have len(spec.Columns) cells, already normalized
	// with NormalizeRow. It returns the number of rows written.
	ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "sqlite", "postgres").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Writer using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Writer, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
