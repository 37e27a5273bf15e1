package book

import (
	"testing"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/shopspring/decimal"
)

func TestSnapshot_DerivedMetrics(t *testing.T) {
	s := NewStore(adapter.ExchangeBybit, "BTCUSDT")
	s.Apply(snapshot(
		[]adapter.PriceLevel{lvl("99", "2"), lvl("98", "3")},
		[]adapter.PriceLevel{lvl("101", "1"), lvl("102", "4")},
	))
	snap := s.Snapshot()

	mid, ok := snap.Mid()
	if !ok || !mid.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected mid 100, got %s", mid)
	}
	spread, ok := snap.Spread()
	if !ok || !spread.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected spread 2, got %s", spread)
	}
	pct, ok := snap.SpreadPercent()
	if !ok || pct.StringFixed(4) != "1.9802" {
		t.Fatalf("expected spread percent 1.9802, got %s", pct.StringFixed(4))
	}
	if !Depth(snap.Asks).Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected ask depth 5, got %s", Depth(snap.Asks))
	}
}

func TestSnapshot_OneSided(t *testing.T) {
	s := NewStore(adapter.ExchangeBybit, "BTCUSDT")
	s.Apply(snapshot([]adapter.PriceLevel{lvl("99", "2")}, nil))
	snap := s.Snapshot()

	if snap.Empty() {
		t.Fatal("one-sided book is not empty")
	}
	if _, ok := snap.Mid(); ok {
		t.Fatal("mid needs both sides")
	}
	if _, ok := snap.SpreadPercent(); ok {
		t.Fatal("spread needs both sides")
	}
	if _, ok := snap.BestAsk(); ok {
		t.Fatal("expected no best ask")
	}
}

func TestSnapshot_Ladder(t *testing.T) {
	s := NewStore(adapter.ExchangeBybit, "BTCUSDT")
	s.Apply(snapshot(
		[]adapter.PriceLevel{lvl("99", "2"), lvl("98", "3"), lvl("97", "1")},
		[]adapter.PriceLevel{lvl("101", "1"), lvl("102", "4")},
	))

	bids, asks := s.Snapshot().Ladder(2)
	if len(bids) != 2 || len(asks) != 2 {
		t.Fatalf("expected 2 rows per side, got %d/%d", len(bids), len(asks))
	}
	if !bids[1].Total.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected cumulative bid total 5, got %s", bids[1].Total)
	}
	if !asks[1].Total.Equal(decimal.NewFromInt(5)) || !asks[0].Total.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected ask totals %s, %s", asks[0].Total, asks[1].Total)
	}
}

func TestSnapshot_Truncate(t *testing.T) {
	s := NewStore(adapter.ExchangeBybit, "BTCUSDT")
	s.Apply(snapshot(
		[]adapter.PriceLevel{lvl("99", "2"), lvl("98", "3")},
		[]adapter.PriceLevel{lvl("101", "1")},
	))
	full := s.Snapshot()

	short := full.Truncate(1)
	if len(short.Bids) != 1 || len(short.Asks) != 1 || !short.Bids[0].Price.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("unexpected truncation %+v", short)
	}
	if len(full.Bids) != 2 {
		t.Fatal("Truncate must not modify the receiver")
	}
	if len(full.Truncate(0).Bids) != 2 {
		t.Fatal("Truncate(0) keeps every level")
	}
}
