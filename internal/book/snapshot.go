package book

import (
	"slices"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is an immutable sorted copy of a Store.
type Snapshot struct {
	Venue      adapter.Exchange
	Symbol     string
	Bids       []adapter.PriceLevel // descending by price
	Asks       []adapter.PriceLevel // ascending by price
	LastUpdate time.Time
	// Updates counts the Apply calls that produced this state.
	Updates uint64
}

// Truncate returns the snapshot limited to n levels per side. n <= 0 keeps
// every level.
func (s Snapshot) Truncate(n int) Snapshot {
	s.Bids = truncate(s.Bids, n)
	s.Asks = truncate(s.Asks, n)
	return s
}

// LadderLevel is one row of a cumulative depth ladder.
type LadderLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
	Total decimal.Decimal // cumulative size from the top of book
}

func (s Snapshot) Empty() bool { return len(s.Bids) == 0 && len(s.Asks) == 0 }

func (s Snapshot) BestBid() (adapter.PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return adapter.PriceLevel{}, false
	}
	return s.Bids[0], true
}

func (s Snapshot) BestAsk() (adapter.PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return adapter.PriceLevel{}, false
	}
	return s.Asks[0], true
}

// Mid returns (bestBid + bestAsk) / 2 when both sides are present.
func (s Snapshot) Mid() (decimal.Decimal, bool) {
	bid, okb := s.BestBid()
	ask, oka := s.BestAsk()
	if !okb || !oka {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Spread returns bestAsk - bestBid when both sides are present.
func (s Snapshot) Spread() (decimal.Decimal, bool) {
	bid, okb := s.BestBid()
	ask, oka := s.BestAsk()
	if !okb || !oka {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// SpreadPercent returns the spread as a percentage of the best ask.
func (s Snapshot) SpreadPercent() (decimal.Decimal, bool) {
	spread, ok := s.Spread()
	if !ok {
		return decimal.Zero, false
	}
	ask, _ := s.BestAsk()
	return spread.Div(ask.Price).Mul(hundred), true
}

// Ladder returns the first n levels per side with cumulative totals. n <= 0
// means every level.
func (s Snapshot) Ladder(n int) (bids, asks []LadderLevel) {
	return ladder(truncate(s.Bids, n)), ladder(truncate(s.Asks, n))
}

func ladder(levels []adapter.PriceLevel) []LadderLevel {
	out := make([]LadderLevel, len(levels))
	total := decimal.Zero
	for i, l := range levels {
		total = total.Add(l.Size)
		out[i] = LadderLevel{Price: l.Price, Size: l.Size, Total: total}
	}
	return out
}

// Depth sums the size of every level on one side.
func Depth(levels []adapter.PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Size)
	}
	return total
}

func sortBids(levels []adapter.PriceLevel) {
	slices.SortFunc(levels, func(a, b adapter.PriceLevel) int { return b.Price.Cmp(a.Price) })
}

func sortAsks(levels []adapter.PriceLevel) {
	slices.SortFunc(levels, func(a, b adapter.PriceLevel) int { return a.Price.Cmp(b.Price) })
}
