// Package book maintains the in-memory order book for one venue and symbol.
package book

import (
	"sync"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/shopspring/decimal"
)

// Store holds one price -> level map per side. Apply is called only by the
// owning feed session; readers get sorted copies.
type Store struct {
	venue  adapter.Exchange
	symbol string

	mu         sync.RWMutex
	bids       map[string]adapter.PriceLevel // keyed by canonical decimal string
	asks       map[string]adapter.PriceLevel
	lastUpdate time.Time
	updates    uint64

	// nowFunc is overridable in tests.
	nowFunc func() time.Time
}

// NewStore returns an empty book for (venue, symbol).
func NewStore(venue adapter.Exchange, symbol string) *Store {
	return &Store{
		venue:   venue,
		symbol:  symbol,
		bids:    make(map[string]adapter.PriceLevel),
		asks:    make(map[string]adapter.PriceLevel),
		nowFunc: time.Now,
	}
}

func (s *Store) Venue() adapter.Exchange { return s.venue }
func (s *Store) Symbol() string          { return s.symbol }

// Apply merges one canonical update. A snapshot clears both sides first.
// Levels with size <= 0 remove the price; others insert or overwrite it.
func (s *Store) Apply(u *adapter.CanonicalUpdate) {
	if u == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.IsSnapshot {
		clear(s.bids)
		clear(s.asks)
	}
	merge(s.bids, u.Bids)
	merge(s.asks, u.Asks)
	s.lastUpdate = s.nowFunc()
	s.updates++
}

func merge(side map[string]adapter.PriceLevel, levels []adapter.PriceLevel) {
	for _, l := range levels {
		key := priceKey(l.Price)
		if !l.Size.IsPositive() {
			delete(side, key)
			continue
		}
		side[key] = l
	}
}

// priceKey normalises trailing zeros so 100, 100.0 and 100.00 share a level.
func priceKey(p decimal.Decimal) string {
	return p.String()
}

// Snapshot returns every level, bids descending and asks ascending.
func (s *Store) Snapshot() Snapshot {
	return s.SnapshotDepth(0)
}

// SnapshotDepth returns at most n levels per side. n <= 0 means all levels.
func (s *Store) SnapshotDepth(n int) Snapshot {
	s.mu.RLock()
	bids := collect(s.bids)
	asks := collect(s.asks)
	snap := Snapshot{
		Venue:      s.venue,
		Symbol:     s.symbol,
		LastUpdate: s.lastUpdate,
		Updates:    s.updates,
	}
	s.mu.RUnlock()

	sortBids(bids)
	sortAsks(asks)
	snap.Bids = truncate(bids, n)
	snap.Asks = truncate(asks, n)
	return snap
}

// Len returns the number of levels per side.
func (s *Store) Len() (bids, asks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bids), len(s.asks)
}

// LastUpdate returns the time of the most recent Apply, or zero.
func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

func collect(side map[string]adapter.PriceLevel) []adapter.PriceLevel {
	out := make([]adapter.PriceLevel, 0, len(side))
	for _, l := range side {
		out = append(out, l)
	}
	return out
}

func truncate(levels []adapter.PriceLevel, n int) []adapter.PriceLevel {
	if n > 0 && len(levels) > n {
		return levels[:n]
	}
	return levels
}
