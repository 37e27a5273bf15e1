package engine

import (
	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/book"
	"github.com/shopspring/decimal"
)

// WarningHighImpact is set on results whose market impact exceeds
// HighImpactPercent.
const WarningHighImpact = "high market impact"

// HighImpactPercent is the market impact above which a warning is raised.
var HighImpactPercent = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// Simulate walks a hypothetical order through sorted book levels. Buys consume
// asks from the lowest price up, sells consume bids from the highest price
// down. Limit orders stop at the first level beyond the limit price. The
// inputs are read only.
func Simulate(order SimulatedOrder, bids, asks []adapter.PriceLevel) Result {
	res := Result{Fills: []Fill{}}
	if !order.Quantity.IsPositive() {
		return res
	}

	var side []adapter.PriceLevel
	switch order.Side {
	case Buy:
		side = asks
	case Sell:
		side = bids
	default:
		return res
	}

	if len(side) > 0 {
		res.ReferencePrice = side[0].Price
	}

	filled := decimal.Zero
	notional := decimal.Zero
	for _, l := range side {
		if filled.GreaterThanOrEqual(order.Quantity) {
			break
		}
		if !eligible(order, l.Price) {
			break
		}
		fill := decimal.Min(order.Quantity.Sub(filled), l.Size)
		if !fill.IsPositive() {
			continue
		}
		filled = filled.Add(fill)
		notional = notional.Add(fill.Mul(l.Price))
		res.Fills = append(res.Fills, Fill{Price: l.Price, Quantity: fill})
	}

	res.FilledQuantity = filled
	res.Notional = notional
	res.FillPercent = filled.Div(order.Quantity).Mul(hundred)
	if filled.IsPositive() {
		res.AvgFillPrice = notional.Div(filled)
	}
	if res.AvgFillPrice.IsPositive() && res.ReferencePrice.IsPositive() {
		res.SlippagePercent = res.AvgFillPrice.Sub(res.ReferencePrice).Abs().
			Div(res.ReferencePrice).Mul(hundred)
	}
	if depth := book.Depth(side); depth.IsPositive() {
		res.MarketImpactPercent = order.Quantity.Div(depth).Mul(hundred)
	}
	if res.MarketImpactPercent.GreaterThan(HighImpactPercent) {
		res.Warning = WarningHighImpact
	}
	return res
}

// eligible reports whether a level at price may fill the order. Market orders
// take any level; limit orders without a limit price take none.
func eligible(order SimulatedOrder, price decimal.Decimal) bool {
	if order.Type != Limit {
		return true
	}
	if !order.LimitPrice.Valid {
		return false
	}
	if order.Side == Buy {
		return price.LessThanOrEqual(order.LimitPrice.Decimal)
	}
	return price.GreaterThanOrEqual(order.LimitPrice.Decimal)
}
