package feed

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/book"
	"github.com/shopspring/decimal"
)

func level(price, size string) adapter.PriceLevel {
	return adapter.PriceLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

func TestNewView_StreamingBook(t *testing.T) {
	snap := book.Snapshot{
		Venue:      adapter.ExchangeOKX,
		Symbol:     "BTC-USDT",
		Bids:       []adapter.PriceLevel{level("100", "2"), level("99.5", "3")},
		Asks:       []adapter.PriceLevel{level("101", "1"), level("102", "4")},
		LastUpdate: time.UnixMilli(1700000000123),
	}

	v := NewView(snap, StateStreaming, nil)

	if v.Venue != "okx" || v.Symbol != "BTC-USDT" {
		t.Fatalf("unexpected identity %s %s", v.Venue, v.Symbol)
	}
	if v.Bids[1] != [2]float64{99.5, 3} || v.Asks[0] != [2]float64{101, 1} {
		t.Fatalf("unexpected levels: bids=%v asks=%v", v.Bids, v.Asks)
	}
	if v.LastUpdateTimestamp != 1700000000123 {
		t.Fatalf("timestamp = %d", v.LastUpdateTimestamp)
	}
	if v.IsLoading || v.ErrorMessage != nil || v.ConnectionState != "streaming" {
		t.Fatalf("unexpected status: %+v", v)
	}
	if v.Mid == nil || *v.Mid != 100.5 || v.Spread == nil || *v.Spread != 1 {
		t.Fatalf("unexpected mid/spread: %v %v", v.Mid, v.Spread)
	}
	if len(v.BidTotals) != 2 || v.BidTotals[1] != 5 {
		t.Fatalf("bid totals = %v, want [2 5]", v.BidTotals)
	}
	if len(v.AskTotals) != 2 || v.AskTotals[1] != 5 {
		t.Fatalf("ask totals = %v, want [1 5]", v.AskTotals)
	}
}

func TestNewView_ErrorBeforeData(t *testing.T) {
	v := NewView(book.Snapshot{Venue: adapter.ExchangeBybit, Symbol: "XYZUSDT"}, StateError, errors.New("no data"))

	if v.LastUpdateTimestamp != 0 || v.Mid != nil || v.BidTotals != nil {
		t.Fatalf("empty book must not carry derived values: %+v", v)
	}
	if v.ErrorMessage == nil || *v.ErrorMessage != "no data" {
		t.Fatalf("unexpected error message %v", v.ErrorMessage)
	}

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"bids":[]`, `"asks":[]`, `"connectionState":"error"`, `"isLoading":false`, `"errorMessage":"no data"`} {
		if !strings.Contains(s, want) {
			t.Errorf("json %s missing %s", s, want)
		}
	}
}

func TestNewView_LoadingStates(t *testing.T) {
	for _, st := range []State{StateConnecting, StateAwaitingFirstData} {
		if v := NewView(book.Snapshot{}, st, nil); !v.IsLoading {
			t.Errorf("%s should be loading", st)
		}
	}
	b, _ := json.Marshal(NewView(book.Snapshot{}, StateIdle, nil))
	if !strings.Contains(string(b), `"errorMessage":null`) {
		t.Fatalf("errorMessage must be null without an error: %s", b)
	}
}
