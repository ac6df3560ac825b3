// Package session owns the in-memory conversation log: an opaque session id
// mapped to an ordered sequence of role-tagged messages.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/chora-ai/chai/internal/model"
)

// ErrNoSuchSession is returned by Append when the session id is unknown.
var ErrNoSuchSession = errors.New("no-such-session")

// Store is a concurrent map of session id to message log.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]model.Message
}

// New returns an empty session store.
func New() *Store {
	return &Store{sessions: make(map[string][]model.Message)}
}

// Create allocates a fresh session id with an empty message log.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	return id
}

// GetOrCreate returns id unchanged if it already names a session; otherwise
// it creates an empty session under that exact id.
func (s *Store) GetOrCreate(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = nil
	}
	return id
}

// Get returns a cloned snapshot of the session's messages so callers cannot
// observe subsequent writers. The second return value is false if the
// session does not exist.
func (s *Store) Get(id string) ([]model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return cloneMessages(msgs), true
}

// Append adds a message to the session's tail. Returns ErrNoSuchSession if
// the session id is unknown.
func (s *Store) Append(id string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNoSuchSession
	}
	s.sessions[id] = append(s.sessions[id], msg)
	return nil
}

// Remove deletes a session entirely. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Exists reports whether id names a live session.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func cloneMessages(msgs []model.Message) []model.Message {
	if msgs == nil {
		return nil
	}
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
