package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashita-ai/sekkei/internal/service/exploration"
)

// Broker fans out exploration changes to SSE subscribers. Observe is handed
// to the session and only queues; Start formats and broadcasts.
type Broker struct {
	logger *slog.Logger
	queue  chan exploration.Change

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	closed      bool
}

// NewBroker creates a new SSE broker. Call Start to begin broadcasting.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		logger:      logger,
		queue:       make(chan exploration.Change, 256),
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Observe queues a session change. It never blocks: when the queue is full
// the change is dropped.
func (b *Broker) Observe(c exploration.Change) {
	select {
	case b.queue <- c:
	default:
		b.logger.Warn("broker: queue full, dropping change", "action", c.Action)
	}
}

// Start broadcasts queued changes until ctx is cancelled, then closes every
// subscriber channel. It blocks, so call it in a goroutine.
func (b *Broker) Start(ctx context.Context) {
	defer b.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.queue:
			data, err := json.Marshal(c.State)
			if err != nil {
				b.logger.Error("broker: marshal state", "action", c.Action, "error", err)
				continue
			}
			b.broadcast(formatSSE(c.Action, string(data)))
		}
	}
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done. After Close the returned
// channel is already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber channel and closes it. Channels already
// closed by Close are left alone.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Close closes every subscriber channel so open event streams return, and
// makes later Subscribe calls return closed channels. It is safe to call more
// than once.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Subscribers returns the number of connected subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// broadcast sends an event to all subscribers. Slow subscribers that have
// a full buffer are skipped (their event is dropped) to prevent one slow
// client from blocking all others.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// formatSSE formats an event as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
