// Package store provides the vouch counter persistence interface and its
// JSON file and SQLite implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/vouchbot/internal/model"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ErrCorrupt is returned by Load when persisted data exists but cannot be
// decoded. Callers start from an empty store.
var ErrCorrupt = errors.New("corrupt vouch data")

// Store persists the whole counter mapping.
type Store interface {
	// Load returns every persisted entry. A missing store yields no entries
	// and no error.
	Load(ctx context.Context) ([]model.Entry, error)

	// Save replaces the persisted mapping with entries.
	Save(ctx context.Context, entries []model.Entry) error

	// Close closes the store.
	Close() error
}

// HistoryParams filters journal reads.
type HistoryParams struct {
	UserID model.UserID
	Limit  int
}

// Journal is implemented by backends that keep an audit trail of mutations.
type Journal interface {
	Append(ctx context.Context, events ...model.Event) error
	History(ctx context.Context, p HistoryParams) ([]model.Event, error)
}

// Open opens the named backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONFileStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown store backend %q (use %s or %s)", backend, BackendJSON, BackendSQLite)
}
