package engine

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func levels(pairs ...[2]string) []adapter.PriceLevel {
	out := make([]adapter.PriceLevel, len(pairs))
	for i, p := range pairs {
		out[i] = adapter.PriceLevel{Price: d(p[0]), Size: d(p[1])}
	}
	return out
}

// bids [[100,2],[99,3]], asks [[101,1],[102,4]].
func testBook() (bids, asks []adapter.PriceLevel) {
	return levels([2]string{"100", "2"}, [2]string{"99", "3"}),
		levels([2]string{"101", "1"}, [2]string{"102", "4"})
}

func TestSimulate_BuyMarketWalksAsks(t *testing.T) {
	bids, asks := testBook()
	res := Simulate(SimulatedOrder{Side: Buy, Type: Market, Quantity: d("3")}, bids, asks)

	if !res.FilledQuantity.Equal(d("3")) {
		t.Fatalf("expected filled 3, got %s", res.FilledQuantity)
	}
	if got := res.AvgFillPrice.Round(2); !got.Equal(d("101.67")) {
		t.Fatalf("expected avg 101.67, got %s", got)
	}
	if !res.FillPercent.Equal(d("100")) {
		t.Fatalf("expected fill 100%%, got %s", res.FillPercent)
	}
	if len(res.Fills) != 2 || !res.Fills[0].Quantity.Equal(d("1")) || !res.Fills[1].Quantity.Equal(d("2")) {
		t.Fatalf("unexpected fills %v", res.Fills)
	}
	if !res.ReferencePrice.Equal(d("101")) || !res.Notional.Equal(d("305")) {
		t.Fatalf("unexpected reference %s / notional %s", res.ReferencePrice, res.Notional)
	}
	if got := res.SlippagePercent.Round(4); !got.Equal(d("0.6601")) {
		t.Fatalf("expected slippage 0.6601%%, got %s", got)
	}
	if !res.MarketImpactPercent.Equal(d("60")) || res.Warning != WarningHighImpact {
		t.Fatalf("expected impact 60%% with warning, got %s %q", res.MarketImpactPercent, res.Warning)
	}
}

func TestSimulate_BuyLimitStopsAtLimit(t *testing.T) {
	bids, asks := testBook()
	order := SimulatedOrder{
		Side:       Buy,
		Type:       Limit,
		LimitPrice: decimal.NewNullDecimal(d("101")),
		Quantity:   d("5"),
	}
	res := Simulate(order, bids, asks)

	if !res.FilledQuantity.Equal(d("1")) {
		t.Fatalf("expected filled 1, got %s", res.FilledQuantity)
	}
	if !res.FillPercent.Equal(d("20")) {
		t.Fatalf("expected fill 20%%, got %s", res.FillPercent)
	}
	if !res.AvgFillPrice.Equal(d("101")) || !res.SlippagePercent.IsZero() {
		t.Fatalf("unexpected avg %s / slippage %s", res.AvgFillPrice, res.SlippagePercent)
	}
}

func TestSimulate_SellWalksBids(t *testing.T) {
	bids, asks := testBook()
	order := SimulatedOrder{
		Side:       Sell,
		Type:       Limit,
		LimitPrice: decimal.NewNullDecimal(d("99")),
		Quantity:   d("4"),
	}
	res := Simulate(order, bids, asks)

	if !res.FilledQuantity.Equal(d("4")) {
		t.Fatalf("expected filled 4, got %s", res.FilledQuantity)
	}
	// (2*100 + 2*99) / 4
	if !res.AvgFillPrice.Equal(d("99.5")) {
		t.Fatalf("expected avg 99.5, got %s", res.AvgFillPrice)
	}
	if !res.ReferencePrice.Equal(d("100")) {
		t.Fatalf("expected reference 100, got %s", res.ReferencePrice)
	}
}

func TestSimulate_MarketImpactWarning(t *testing.T) {
	asks := levels([2]string{"101", "1"}, [2]string{"102", "4"})
	res := Simulate(SimulatedOrder{Side: Buy, Type: Market, Quantity: d("1")}, nil, asks)

	if !res.MarketImpactPercent.Equal(d("20")) {
		t.Fatalf("expected impact 20%%, got %s", res.MarketImpactPercent)
	}
	if res.Warning != WarningHighImpact {
		t.Fatalf("expected warning, got %q", res.Warning)
	}

	deep := levels([2]string{"101", "100"})
	res = Simulate(SimulatedOrder{Side: Buy, Type: Market, Quantity: d("1")}, nil, deep)
	if res.Warning != "" {
		t.Fatalf("expected no warning at 1%% impact, got %q", res.Warning)
	}
}

func TestSimulate_DegenerateInputs(t *testing.T) {
	bids, asks := testBook()

	cases := map[string]struct {
		order      SimulatedOrder
		bids, asks []adapter.PriceLevel
	}{
		"zero quantity":       {SimulatedOrder{Side: Buy, Type: Market}, bids, asks},
		"negative quantity":   {SimulatedOrder{Side: Buy, Type: Market, Quantity: d("-1")}, bids, asks},
		"empty book":          {SimulatedOrder{Side: Buy, Type: Market, Quantity: d("1")}, nil, nil},
		"limit without price": {SimulatedOrder{Side: Buy, Type: Limit, Quantity: d("1")}, bids, asks},
		"unknown side":        {SimulatedOrder{Type: Market, Quantity: d("1")}, bids, asks},
	}
	for name, c := range cases {
		res := Simulate(c.order, c.bids, c.asks)
		if !res.FilledQuantity.IsZero() || !res.AvgFillPrice.IsZero() || !res.SlippagePercent.IsZero() {
			t.Errorf("%s: expected zero fill, got %+v", name, res)
		}
	}
}

func TestSimulate_PureAndNonMutating(t *testing.T) {
	bids, asks := testBook()
	before := append([]adapter.PriceLevel(nil), asks...)
	order := SimulatedOrder{Side: Buy, Type: Market, Quantity: d("3")}

	a := Simulate(order, bids, asks)
	b := Simulate(order, bids, asks)

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("simulate is not deterministic:\n%+v\n%+v", a, b)
	}
	if !reflect.DeepEqual(before, asks) {
		t.Fatal("simulate mutated its input")
	}
}

func TestResultJSON(t *testing.T) {
	bids, asks := testBook()
	res := Simulate(SimulatedOrder{Side: Buy, Type: Market, Quantity: d("1")}, bids, asks)

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["filledQuantity"] != "1" || m["avgFillPrice"] != "101" {
		t.Fatalf("decimals must encode as strings: %s", raw)
	}
}
