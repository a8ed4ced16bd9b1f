// Package storage holds the backend-agnostic contracts for SQL mirror sinks:
// a Repository interface, a registry of backend factories keyed by kind, a
// batched loader and table bootstrapping from the artifact schema.
//
// Backends register themselves in init; import storage/all to enable every
// built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Repository is a bulk-insert destination.
type Repository interface {
	// CopyFrom inserts rows aligned to columns and reports how many landed.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// Kinds lists registered backends, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository through the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (have %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}
