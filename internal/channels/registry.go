// Package channels holds the minimal named-handle registry for inbound and
// outbound chat channels, grounded on the shape of the teacher's
// internal/channels/registry.go trimmed to this gateway's single-connector
// scope (spec.md §4.8).
package channels

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownChannel is returned when a channel id has no registered handle.
var ErrUnknownChannel = errors.New("channels: unknown channel id")

// Handle is a registered channel's control surface: an id, a send
// operation, and a stop operation for graceful shutdown.
type Handle interface {
	ID() string
	Send(ctx context.Context, conversationID, text string) error
	Stop(ctx context.Context) error
}

// Registry maps channel id to its live Handle. Registrations happen only at
// startup; reads are frequent and concurrent.
type Registry struct {
	mu       sync.RWMutex
	handles  map[string]Handle
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register adds a handle under its own id, replacing any prior handle with
// the same id.
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ID()] = h
}

// Get returns the handle for id, if registered.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Send routes to the named channel's Send, or ErrUnknownChannel.
func (r *Registry) Send(ctx context.Context, channelID, conversationID, text string) error {
	h, ok := r.Get(channelID)
	if !ok {
		return ErrUnknownChannel
	}
	return h.Send(ctx, conversationID, text)
}

// StopAll stops every registered handle, collecting (not short-circuiting
// on) individual errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	var errs []error
	for _, h := range handles {
		if err := h.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
