package catalog

import "github.com/starford/ansuz/internal/models"

// Persister is the persistence boundary for the catalog: load-all at
// startup and an atomic per-record put after every commit. The encoding is
// the implementation's concern.
// Load must return records in their original insertion order.
type Persister interface {
	Load() ([]models.Record, error)
	Put(rec models.Record) error
	Close() error
}
