// Package catalog implements the in-memory catalog store and its
// persistence backends.
package catalog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Normalize lower-cases and trims a title or query so that storage and
// lookup always compare the same form.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Entry is one (title, record) pair in catalog insertion order.
type Entry struct {
	Title  string
	Record models.Record
}

// Store holds the catalog in memory and flushes every mutation through a
// Persister before acknowledging it.
//
// Concurrency model: single writer (the entry dialogue's commit step),
// concurrent readers. The RWMutex guarantees a reader observes either a
// fully-pre-write or fully-post-write catalog, never a partial record.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.Record
	order   []string // titles in insertion order; drives tie-breaking
	p       Persister
	logger  *slog.Logger
}

// NewStore builds a store from the persister's saved state. A load failure
// (missing or corrupt source) yields an empty catalog and a log line, not a
// startup failure.
func NewStore(p Persister, logger *slog.Logger) *Store {
	s := &Store{
		records: make(map[string]models.Record),
		p:       p,
		logger:  logger,
	}
	recs, err := p.Load()
	if err != nil {
		logger.Warn("catalog: load failed, starting empty", slog.String("error", err.Error()))
		return s
	}
	for _, r := range recs {
		title := Normalize(r.Title)
		if title == "" {
			continue
		}
		if _, ok := s.records[title]; !ok {
			s.order = append(s.order, title)
		}
		r.Title = title
		s.records[title] = r
	}
	logger.Info("catalog: loaded", slog.Int("entries", len(s.records)))
	return s
}

// Get returns the record stored under the normalized title.
func (s *Store) Get(title string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[Normalize(title)]
	return r, ok
}

// Put inserts or overwrites a record under its normalized title and flushes
// it synchronously. On flush failure the in-memory catalog keeps the record
// (it stays authoritative for the process lifetime) and the error is
// returned wrapped as apperr.ErrPersistence.
func (s *Store) Put(rec models.Record) error {
	title := Normalize(rec.Title)
	if title == "" {
		return fmt.Errorf("catalog: empty title: %w", apperr.ErrValidation)
	}
	rec.Title = title

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[title]; !ok {
		s.order = append(s.order, title)
	}
	s.records[title] = rec

	if err := s.p.Put(rec); err != nil {
		s.logger.Error("catalog: flush failed",
			slog.String("title", title),
			slog.String("error", err.Error()))
		return fmt.Errorf("catalog: flush %q: %w", title, apperr.ErrPersistence)
	}
	return nil
}

// All returns a snapshot of the catalog in insertion order. It reflects
// every commit that completed before the call.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, title := range s.order {
		out = append(out, Entry{Title: title, Record: s.records[title]})
	}
	return out
}

// Len returns the number of catalog entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
