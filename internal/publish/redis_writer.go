package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/caesar-terminal/depthsim/internal/feed"
)

// RedisClient abstracts the Redis operations used by RedisWriter.
// In production this is satisfied by *Client; in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
	Del(ctx context.Context, keys ...string) error
}

// topOfBook holds the last-written best bid/ask for a key so duplicate
// writes can be skipped.
type topOfBook struct {
	Bid string
	Ask string
}

// RedisWriter consumes broadcaster events and keeps the top of book of the
// active session in Redis using the schema:
//
//	Key:    book:{venue}:{symbol}
//	Fields: bid, ask, mid, spread, ts
//
// Only current state is kept. A session that ends removes its key.
type RedisWriter struct {
	client RedisClient
	events <-chan feed.Event
	buf    chan feed.Event
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]topOfBook // keyed by Redis key
}

// NewRedisWriter creates a RedisWriter reading from a Broadcaster
// subscription.
func NewRedisWriter(client RedisClient, events <-chan feed.Event, logger *slog.Logger) *RedisWriter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisWriter{
		client: client,
		events: events,
		buf:    make(chan feed.Event, 1024),
		logger: logger.With("component", "redis_writer"),
		last:   make(map[string]topOfBook),
	}
}

// Key returns the Redis key for a venue and symbol.
func Key(venue, symbol string) string {
	return fmt.Sprintf("book:%s:%s", venue, symbol)
}

// Run drains events into an internal buffer on one goroutine and flushes
// them to Redis on another. It blocks until ctx is cancelled or the event
// channel closes.
func (rw *RedisWriter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	// Ingestion never blocks the broadcaster.
	go func() {
		defer wg.Done()
		defer close(rw.buf)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-rw.events:
				if !ok {
					return
				}
				select {
				case rw.buf <- ev:
				default:
					rw.logger.Debug("buffer full, dropping event", "venue", ev.Venue, "symbol", ev.Symbol)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		for ev := range rw.buf {
			if ctx.Err() != nil {
				return
			}
			rw.write(ctx, ev)
		}
	}()

	wg.Wait()
}

// write issues an HSET for a changed top of book, or a DEL once the session
// has ended.
func (rw *RedisWriter) write(ctx context.Context, ev feed.Event) {
	key := Key(string(ev.Venue), ev.Symbol)

	if ev.State.Terminal() {
		rw.mu.Lock()
		_, known := rw.last[key]
		delete(rw.last, key)
		rw.mu.Unlock()
		if !known {
			return
		}
		if err := rw.client.Del(ctx, key); err != nil {
			rw.logger.Warn("redis del failed", "key", key, "error", err)
		}
		return
	}

	bid, okb := ev.Book.BestBid()
	ask, oka := ev.Book.BestAsk()
	if !okb || !oka {
		return
	}
	tob := topOfBook{Bid: bid.Price.String(), Ask: ask.Price.String()}

	rw.mu.Lock()
	prev, exists := rw.last[key]
	if exists && prev == tob {
		rw.mu.Unlock()
		return
	}
	rw.last[key] = tob
	rw.mu.Unlock()

	mid, _ := ev.Book.Mid()
	spread, _ := ev.Book.Spread()
	ts := strconv.FormatInt(ev.Book.LastUpdate.UnixMilli(), 10)

	if err := rw.client.HSet(ctx, key,
		"bid", tob.Bid,
		"ask", tob.Ask,
		"mid", mid.String(),
		"spread", spread.String(),
		"ts", ts,
	); err != nil {
		rw.logger.Warn("redis hset failed", "key", key, "error", err)
	}
}
