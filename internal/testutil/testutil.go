// Package testutil provides shared test helpers for setting up catalogs
// and loggers.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/catalog"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a SQLite-backed catalog store in a temp directory that
// is automatically cleaned up.
func TestStore(t *testing.T) *catalog.Store {
	t.Helper()
	db, err := catalog.OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return catalog.NewStore(db, Logger())
}
