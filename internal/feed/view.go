package feed

import (
	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/book"
)

// View is the canonical output consumed by presentation layers. Prices and
// sizes are plain JSON numbers; bids are descending and asks ascending.
type View struct {
	Venue               string       `json:"venue"`
	Symbol              string       `json:"symbol"`
	Bids                [][2]float64 `json:"bids"`
	Asks                [][2]float64 `json:"asks"`
	LastUpdateTimestamp int64        `json:"lastUpdateTimestamp"` // unix millis, 0 before the first update
	ConnectionState     string       `json:"connectionState"`
	IsLoading           bool         `json:"isLoading"`
	ErrorMessage        *string      `json:"errorMessage"`

	Mid           *float64 `json:"mid,omitempty"`
	Spread        *float64 `json:"spread,omitempty"`
	SpreadPercent *float64 `json:"spreadPercent,omitempty"`

	// Cumulative size per level, aligned with Bids and Asks.
	BidTotals []float64 `json:"bidTotals,omitempty"`
	AskTotals []float64 `json:"askTotals,omitempty"`
}

// NewView renders a snapshot together with the session state.
func NewView(snap book.Snapshot, state State, err error) View {
	v := View{
		Venue:           string(snap.Venue),
		Symbol:          snap.Symbol,
		Bids:            pairs(snap.Bids),
		Asks:            pairs(snap.Asks),
		ConnectionState: state.String(),
		IsLoading:       state.Loading(),
	}
	if !snap.LastUpdate.IsZero() {
		v.LastUpdateTimestamp = snap.LastUpdate.UnixMilli()
	}
	if err != nil {
		msg := err.Error()
		v.ErrorMessage = &msg
	}
	if mid, ok := snap.Mid(); ok {
		f := mid.InexactFloat64()
		v.Mid = &f
	}
	if spread, ok := snap.Spread(); ok {
		f := spread.InexactFloat64()
		v.Spread = &f
	}
	if pct, ok := snap.SpreadPercent(); ok {
		f := pct.InexactFloat64()
		v.SpreadPercent = &f
	}
	bids, asks := snap.Ladder(0)
	v.BidTotals = totals(bids)
	v.AskTotals = totals(asks)
	return v
}

func totals(levels []book.LadderLevel) []float64 {
	if len(levels) == 0 {
		return nil
	}
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Total.InexactFloat64()
	}
	return out
}

func pairs(levels []adapter.PriceLevel) [][2]float64 {
	out := make([][2]float64, len(levels))
	for i, l := range levels {
		out[i] = [2]float64{l.Price.InexactFloat64(), l.Size.InexactFloat64()}
	}
	return out
}
