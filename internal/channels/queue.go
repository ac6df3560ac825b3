package channels

import (
	"errors"

	"github.com/chora-ai/chai/internal/model"
)

// ErrQueueFull is returned by InboundQueue.Push when the bounded queue has
// no room; callers translate this into a 503 (webhook) or loop termination
// (long-poll), per spec.md §4.8.
var ErrQueueFull = errors.New("channels: inbound queue full")

// InboundQueue is a bounded, non-blocking queue of Inbound Messages shared
// by every intake mode (webhook handler, long-poll loop) feeding the
// gateway's inbound processor.
type InboundQueue struct {
	ch chan model.InboundMessage
}

// NewInboundQueue returns a queue with the given capacity.
func NewInboundQueue(capacity int) *InboundQueue {
	return &InboundQueue{ch: make(chan model.InboundMessage, capacity)}
}

// Push enqueues msg without blocking. Returns ErrQueueFull if the queue has
// no free capacity.
func (q *InboundQueue) Push(msg model.InboundMessage) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// C exposes the receive side for the inbound processor's consume loop.
func (q *InboundQueue) C() <-chan model.InboundMessage {
	return q.ch
}
