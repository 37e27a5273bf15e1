package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OrderType distinguishes execution semantics.
type OrderType uint8

const (
	Limit OrderType = iota + 1
	Market
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

// ParseOrderType accepts "limit" or "market" in any case.
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "limit":
		return Limit, nil
	case "market":
		return Market, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *OrderType) UnmarshalText(b []byte) error {
	v, err := ParseOrderType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// SimulatedOrder is a hypothetical order walked against a book snapshot. It
// is never sent to an exchange.
type SimulatedOrder struct {
	Side       Side                `json:"side"`
	Type       OrderType           `json:"type"`
	LimitPrice decimal.NullDecimal `json:"limitPrice"`
	Quantity   decimal.Decimal     `json:"quantity"`
}

// Fill is the portion of an order taken from one price level.
type Fill struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Result is the predicted outcome of a SimulatedOrder. Percentages are on a
// 0-100 scale.
type Result struct {
	FilledQuantity      decimal.Decimal `json:"filledQuantity"`
	AvgFillPrice        decimal.Decimal `json:"avgFillPrice"`
	FillPercent         decimal.Decimal `json:"fillPercent"`
	SlippagePercent     decimal.Decimal `json:"slippagePercent"`
	MarketImpactPercent decimal.Decimal `json:"marketImpactPercent"`
	Warning             string          `json:"warning,omitempty"`

	ReferencePrice decimal.Decimal `json:"referencePrice"`
	Notional       decimal.Decimal `json:"notional"`
	Fills          []Fill          `json:"fills"`
}
