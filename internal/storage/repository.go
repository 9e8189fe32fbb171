// Package storage defines the backend-agnostic repository surface the
// pipeline loads through, plus the factory registry backends register with.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to construct a Repository.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the store interface the load stage needs. Each backend
// implements the semantics in its own idiomatic way (parameter placeholders,
// parameter limits, identifier quoting).
type Repository interface {
	// Close releases connections. Call once at shutdown.
	Close()

	// ExecScript executes a DDL script: statements are separated by ';',
	// a leading byte-order-mark is stripped, blank statements are skipped.
	// The whole script runs in one transaction.
	ExecScript(ctx context.Context, script string) error

	// InsertBatch inserts one batch of rows into table and commits it as a
	// unit. nil values are written as SQL NULL. A batch that fails leaves
	// previously committed batches in place; callers treat that as a full
	// rebuild on the next run.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "mssql", "postgres").
// Backends call this from init(); registering a kind twice panics to fail
// fast on ambiguous backend selection.
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

// New constructs a Repository for the configured backend kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
