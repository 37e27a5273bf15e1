package deribit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caesar-terminal/depthsim/internal/adapter"
)

// DefaultURL is the Deribit production JSON-RPC stream.
const DefaultURL = "wss://www.deribit.com/ws/api/v2"

// DefaultInstrument is used when a symbol has no instrument separator.
const DefaultInstrument = "BTC-PERPETUAL"

const (
	channelPrefix = "book."
	interval      = "100ms"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  any             `json:"params"`
}

type channelParams struct {
	Channels []string `json:"channels"`
}

type rawNotification struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
	Params struct {
		Type    string          `json:"type"`
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

type bookData struct {
	Type string              `json:"type"`
	Bids [][]json.RawMessage `json:"bids"`
	Asks [][]json.RawMessage `json:"asks"`
}

// Venue speaks the Deribit v2 JSON-RPC book protocol.
type Venue struct {
	url string
}

// New returns a Deribit venue. An empty url selects DefaultURL.
func New(url string) *Venue {
	if url == "" {
		url = DefaultURL
	}
	return &Venue{url: url}
}

func (v *Venue) Name() adapter.Exchange { return adapter.ExchangeDeribit }

func (v *Venue) URL() string { return v.url }

// FormatSymbol keeps instrument names such as "ETH-PERPETUAL" and maps
// anything else to DefaultInstrument.
func (v *Venue) FormatSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "-") {
		return s
	}
	return DefaultInstrument
}

func (v *Venue) Subscribe(symbol string) adapter.Message {
	return v.call("public/subscribe", symbol)
}

func (v *Venue) Unsubscribe(symbol string) adapter.Message {
	return v.call("public/unsubscribe", symbol)
}

func (v *Venue) call(method, symbol string) adapter.Message {
	msg, _ := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  channelParams{Channels: []string{channelPrefix + symbol + "." + interval}},
	})
	return msg
}

// Parse decodes book subscription notifications. Levels arrive as
// [action, price, amount]; the action tag is dropped and a zero amount
// removes the level.
func (v *Venue) Parse(raw []byte) (*adapter.CanonicalUpdate, error) {
	var msg rawNotification
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("deribit: %w: %v", adapter.ErrParse, err)
	}
	if msg.Method != "subscription" || !strings.HasPrefix(msg.Params.Channel, channelPrefix) {
		return nil, nil
	}
	if len(msg.Params.Data) == 0 {
		return nil, fmt.Errorf("deribit: %w: %s without data", adapter.ErrParse, msg.Params.Channel)
	}
	var d bookData
	if err := json.Unmarshal(msg.Params.Data, &d); err != nil {
		return nil, fmt.Errorf("deribit: %w: %s: %v", adapter.ErrParse, msg.Params.Channel, err)
	}

	return &adapter.CanonicalUpdate{
		Bids:       adapter.ParseLevels(dropAction(d.Bids), 0),
		Asks:       adapter.ParseLevels(dropAction(d.Asks), 0),
		IsSnapshot: d.Type == "snapshot",
	}, nil
}

// dropAction strips the leading action tag from three-column rows. Grouped
// channels send [price, amount] and pass through unchanged.
func dropAction(rows [][]json.RawMessage) [][]json.RawMessage {
	out := make([][]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		if len(row) == 3 {
			row = row[1:]
		}
		out = append(out, row)
	}
	return out
}

// HeartbeatReply answers a heartbeat test_request with public/test, echoing
// the request id when one is present.
func (v *Venue) HeartbeatReply(raw []byte) adapter.Message {
	var msg rawNotification
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	if msg.Method != "heartbeat" || msg.Params.Type != "test_request" {
		return nil
	}
	return v.test(msg.ID)
}

// PingReply is nil: Deribit uses JSON-RPC heartbeats, not text pings.
func (v *Venue) PingReply(raw []byte) adapter.Message { return nil }

func (v *Venue) KeepAlive() adapter.Message { return v.test(nil) }

func (v *Venue) test(id json.RawMessage) adapter.Message {
	msg, _ := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "public/test",
		Params:  struct{}{},
	})
	return msg
}
