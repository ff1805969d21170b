// Package dialogue implements the two-step catalog entry flow operators
// walk through: collect a title, then collect a link, then commit.
package dialogue

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/models"
)

// State is the position of a session inside the entry flow. Idle is not
// modeled: an operator with no session is idle.
type State int

const (
	StateAwaitingTitle State = iota
	StateAwaitingLink
)

// DefaultTTL is how long an untouched session survives before the sweeper
// or a lazy check discards it.
const DefaultTTL = 15 * time.Minute

// Session is the transient per-operator dialogue state.
type Session struct {
	State        State
	PendingTitle string
	LastActive   time.Time
}

// Outcome classifies what a piece of dialogue input did.
type Outcome int

const (
	// OutcomeTitleRejected: title too short, state unchanged, re-prompt.
	OutcomeTitleRejected Outcome = iota
	// OutcomeLinkRequested: title accepted, now awaiting the link.
	OutcomeLinkRequested
	// OutcomeLinkRejected: link has no accepted scheme, state unchanged.
	OutcomeLinkRejected
	// OutcomeCommitted: record stored, session destroyed.
	OutcomeCommitted
)

// Result reports the outcome of one dialogue input. Title carries the
// normalized title involved; Size is the catalog size after a commit.
// SaveErr is set when the commit landed in memory but the flush failed.
type Result struct {
	Outcome Outcome
	Title   string
	Size    int
	SaveErr error
}

// Authorizer is the external allow-list check for operator identities.
type Authorizer interface {
	Authorized(id int64) bool
}

// Manager owns all dialogue sessions, keyed by operator ID. Sessions for
// different operators are independent; the mutex only guards the map and
// makes concurrent commits serialize through the store one at a time.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	store  *catalog.Store
	auth   Authorizer
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a dialogue manager. ttl <= 0 falls back to DefaultTTL.
func NewManager(store *catalog.Store, auth Authorizer, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[int64]*Session),
		store:    store,
		auth:     auth,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins (or restarts) the entry flow for an operator. Authorization
// is checked only here; an operator is trusted for the session's lifetime.
func (m *Manager) Start(operator int64) error {
	if !m.auth.Authorized(operator) {
		return fmt.Errorf("dialogue: operator %d: %w", operator, apperr.ErrPermissionDenied)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[operator] = &Session{
		State:      StateAwaitingTitle,
		LastActive: m.now(),
	}
	m.logger.Info("dialogue: session started", slog.Int64("operator", operator))
	return nil
}

// Active reports whether the operator has a live (non-expired) session.
func (m *Manager) Active(operator int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(operator) != nil
}

// Cancel destroys the operator's session if one exists.
func (m *Manager) Cancel(operator int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[operator]; !ok {
		return false
	}
	delete(m.sessions, operator)
	m.logger.Info("dialogue: session cancelled", slog.Int64("operator", operator))
	return true
}

// Input advances the operator's session with one message of text. It
// returns apperr.ErrNotFound when the operator has no live session.
func (m *Manager) Input(operator int64, text string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.live(operator)
	if s == nil {
		return Result{}, fmt.Errorf("dialogue: operator %d has no session: %w", operator, apperr.ErrNotFound)
	}
	s.LastActive = m.now()

	switch s.State {
	case StateAwaitingTitle:
		title := catalog.Normalize(text)
		if len([]rune(title)) < 2 {
			return Result{Outcome: OutcomeTitleRejected}, nil
		}
		s.PendingTitle = title
		s.State = StateAwaitingLink
		return Result{Outcome: OutcomeLinkRequested, Title: title}, nil

	case StateAwaitingLink:
		link := strings.TrimSpace(text)
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			return Result{Outcome: OutcomeLinkRejected, Title: s.PendingTitle}, nil
		}

		rec := models.Record{
			Title:   s.PendingTitle,
			Link:    link,
			AddedBy: operator,
			AddedAt: m.now(),
		}
		saveErr := m.store.Put(rec)
		delete(m.sessions, operator)

		m.logger.Info("dialogue: record committed",
			slog.Int64("operator", operator),
			slog.String("title", rec.Title))

		return Result{
			Outcome: OutcomeCommitted,
			Title:   rec.Title,
			Size:    m.store.Len(),
			SaveErr: saveErr,
		}, nil
	}

	return Result{}, fmt.Errorf("dialogue: operator %d in unknown state %d", operator, s.State)
}

// Sweep drops sessions idle past the TTL and returns how many it removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := m.now().Add(-m.ttl)
	for op, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			delete(m.sessions, op)
			removed++
			m.logger.Info("dialogue: session expired", slog.Int64("operator", op))
		}
	}
	return removed
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// live returns the operator's session, lazily discarding it if expired.
// Caller must hold the mutex.
func (m *Manager) live(operator int64) *Session {
	s, ok := m.sessions[operator]
	if !ok {
		return nil
	}
	if m.now().Sub(s.LastActive) > m.ttl {
		delete(m.sessions, operator)
		return nil
	}
	return s
}
