package feed

import (
	"io"
	"log/slog"
	"sync"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/book"
)

// Event is published on every book change and every state transition of the
// active session.
type Event struct {
	SessionID string
	Venue     adapter.Exchange
	Symbol    string
	State     State
	Err       error
	Book      book.Snapshot
}

// View renders the event in the canonical output shape.
func (e Event) View() View {
	return NewView(e.Book, e.State, e.Err)
}

// Broadcaster fans session events out to any number of subscribers, such as
// Watch streams and the Redis projection. Slow subscribers miss events
// rather than stall the session.
type Broadcaster struct {
	logger *slog.Logger
	buffer int

	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates a Broadcaster whose subscriber channels hold buffer
// events. A nil logger discards logs.
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Broadcaster{
		logger: logger.With("component", "broadcaster"),
		buffer: buffer,
		subs:   make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel of events and a cancel func that removes the
// subscription and closes the channel. The caller must drain the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// HasSubscribers lets publishers skip building snapshots nobody reads.
func (b *Broadcaster) HasSubscribers() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0
}

// Publish delivers ev to every subscriber without blocking.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropping event for slow subscriber",
				"venue", ev.Venue, "symbol", ev.Symbol, "state", ev.State)
		}
	}
}
