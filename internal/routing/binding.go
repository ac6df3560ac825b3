// Package routing maintains the bijective mapping between a channel
// conversation and a session id, grounded on the original gateway's
// routing.rs bind/evict pattern.
package routing

import "sync"

type conversationKey struct {
	channelID      string
	conversationID string
}

// Store is a dual-indexed (channel, conversation) <-> session mapping.
// Bind is atomic: it evicts any prior entry for either side before
// inserting the new pair.
type Store struct {
	mu          sync.Mutex
	toSession   map[conversationKey]string
	toBinding   map[string]conversationKey
}

// New returns an empty binding store.
func New() *Store {
	return &Store{
		toSession: make(map[conversationKey]string),
		toBinding: make(map[string]conversationKey),
	}
}

// Bind links (channelID, conversationID) to sessionID, evicting any prior
// binding that shares either side. Calling Bind twice with identical
// arguments is idempotent.
func (s *Store) Bind(channelID, conversationID, sessionID string) {
	key := conversationKey{channelID, conversationID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prevSession, ok := s.toSession[key]; ok {
		if prevSession == sessionID {
			return
		}
		delete(s.toBinding, prevSession)
	}
	if prevKey, ok := s.toBinding[sessionID]; ok {
		delete(s.toSession, prevKey)
	}

	s.toSession[key] = sessionID
	s.toBinding[sessionID] = key
}

// ResolveSession returns the session bound to (channelID, conversationID), if any.
func (s *Store) ResolveSession(channelID, conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.toSession[conversationKey{channelID, conversationID}]
	return id, ok
}

// ResolveBinding returns the (channelID, conversationID) bound to sessionID, if any.
func (s *Store) ResolveBinding(sessionID string) (channelID, conversationID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.toBinding[sessionID]
	if !ok {
		return "", "", false
	}
	return key.channelID, key.conversationID, true
}

// Evict removes the binding associated with sessionID, if any, from both
// indices.
func (s *Store) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.toBinding[sessionID]
	if !ok {
		return
	}
	delete(s.toBinding, sessionID)
	delete(s.toSession, key)
}
