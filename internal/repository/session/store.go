// Package session keeps conversation sessions in memory, one in-flight turn per session.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/conversation"
)

type entry struct {
	mu   sync.Mutex
	sess *conversation.Session
}

// Store holds sessions by id. Turns on the same session are serialized; different sessions proceed in parallel.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{sessions: make(map[string]*entry), now: time.Now}
}

// Create starts a new session with a random id.
func (s *Store) Create(confirm bool) *conversation.Session {
	sess := conversation.New(uuid.NewString(), confirm, s.now().UTC())

	s.mu.Lock()
	s.sessions[sess.ID()] = &entry{sess: sess}
	s.mu.Unlock()
	return sess
}

// With runs fn while holding the session's lock. A cancelled ctx is checked before fn runs.
func (s *Store) With(ctx context.Context, id string, fn func(*conversation.Session) error) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(e.sess)
}

// Delete removes a session. Missing ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// EvictIdle removes sessions not updated since before cutoff and returns how many were removed.
func (s *Store) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue // turn in flight
		}
		if e.sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
