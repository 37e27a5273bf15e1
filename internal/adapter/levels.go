package adapter

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ParseLevels converts raw wire rows into PriceLevels. priceIdx is the index
// of the price column; the size column follows it. Rows that are too short or
// hold a non-numeric price or size are skipped, as are non-positive prices.
func ParseLevels(rows [][]json.RawMessage, priceIdx int) []PriceLevel {
	levels := make([]PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < priceIdx+2 {
			continue
		}
		price, ok := parseDecimal(row[priceIdx])
		if !ok || !price.IsPositive() {
			continue
		}
		size, ok := parseDecimal(row[priceIdx+1])
		if !ok {
			continue
		}
		levels = append(levels, PriceLevel{Price: price, Size: size})
	}
	return levels
}

// parseDecimal accepts both quoted ("101.5") and bare (101.5) JSON numbers.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// IsTextPing reports whether raw is a bare text "ping" keep-alive frame.
func IsTextPing(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("ping"))
}

// IsTextPong reports whether raw is a bare text "pong", the answer to a
// text keep-alive.
func IsTextPong(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("pong"))
}

// controlEnvelope holds the fields that mark subscription acks and info
// messages across the supported venues.
type controlEnvelope struct {
	Event   string          `json:"event"`
	Success *bool           `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// IsControl reports whether raw is a subscription ack or info message: an
// OKX "event", a Bybit "success" response, or a Deribit JSON-RPC "result".
// Non-JSON input is not a control message.
func IsControl(raw []byte) bool {
	var env controlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if env.Event != "" {
		return true
	}
	if env.Success != nil && *env.Success {
		return true
	}
	return len(env.Result) > 0
}
