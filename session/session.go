// Package session holds the result of the most recent run so it can be
// exported or reverted while it is still fresh.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/dateparse"
)

var (
	ErrNotFound = errors.New("no session")
	ErrExpired  = errors.New("session expired")
)

// Session is one run's result set.
type Session struct {
	ID        uuid.UUID
	Range     dateparse.Range
	Rows      []colorize.ResultRow
	CreatedAt time.Time
	ExpiresAt time.Time
	// Reverted is set once the colors of this session were restored.
	Reverted bool
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store keeps only the latest session.
type Store struct {
	ttl time.Duration

	mu     sync.Mutex
	latest *Session
}

// NewStore creates a store whose sessions live for ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl}
}

// Put records a new session, replacing any previous one.
func (s *Store) Put(rng dateparse.Range, rows []colorize.ResultRow, now time.Time) *Session {
	sess := &Session{
		ID:        uuid.New(),
		Range:     rng,
		Rows:      append([]colorize.ResultRow(nil), rows...),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.latest = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with id if it is still the latest and not expired.
func (s *Store) Get(id uuid.UUID, now time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || s.latest.ID != id {
		return nil, ErrNotFound
	}
	if s.latest.Expired(now) {
		s.latest = nil
		return nil, ErrExpired
	}
	return s.latest, nil
}

// Update replaces the rows of the session with id, e.g. after a revert.
func (s *Store) Update(id uuid.UUID, rows []colorize.ResultRow, reverted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || s.latest.ID != id {
		return ErrNotFound
	}
	s.latest.Rows = append([]colorize.ResultRow(nil), rows...)
	s.latest.Reverted = s.latest.Reverted || reverted
	return nil
}

// Drop forgets the session with id once the operator has moved on from it.
func (s *Store) Drop(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && s.latest.ID == id {
		s.latest = nil
	}
}
