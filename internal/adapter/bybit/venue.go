package bybit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caesar-terminal/depthsim/internal/adapter"
)

// DefaultURL is the Bybit v5 public spot stream.
const DefaultURL = "wss://stream.bybit.com/v5/public/spot"

const (
	topicPrefix = "orderbook."
	depth       = 50
)

// Bybit control message: {"op":"subscribe","args":["orderbook.50.BTCUSDT"]}.
type opMsg struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// Raw orderbook push as received over the wire.
type rawBook struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

type bookData struct {
	Symbol string              `json:"s"`
	Bids   [][]json.RawMessage `json:"b"`
	Asks   [][]json.RawMessage `json:"a"`
}

var pingMsg = adapter.Message(`{"op":"ping"}`)

// Venue speaks the Bybit v5 public orderbook protocol.
type Venue struct {
	url string
}

// New returns a Bybit venue. An empty url selects DefaultURL.
func New(url string) *Venue {
	if url == "" {
		url = DefaultURL
	}
	return &Venue{url: url}
}

func (v *Venue) Name() adapter.Exchange { return adapter.ExchangeBybit }

func (v *Venue) URL() string { return v.url }

// FormatSymbol upper-cases and strips separators: "btc-usdt" -> "BTCUSDT".
func (v *Venue) FormatSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("-", "", "/", "", "_", "").Replace(s)
}

func (v *Venue) Subscribe(symbol string) adapter.Message {
	return v.op("subscribe", symbol)
}

func (v *Venue) Unsubscribe(symbol string) adapter.Message {
	return v.op("unsubscribe", symbol)
}

func (v *Venue) op(op, symbol string) adapter.Message {
	msg, _ := json.Marshal(opMsg{
		Op:   op,
		Args: []string{fmt.Sprintf("%s%d.%s", topicPrefix, depth, symbol)},
	})
	return msg
}

// Parse decodes orderbook snapshot and delta pushes. Anything without an
// orderbook topic is ignored.
func (v *Venue) Parse(raw []byte) (*adapter.CanonicalUpdate, error) {
	var msg rawBook
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("bybit: %w: %v", adapter.ErrParse, err)
	}
	if !strings.HasPrefix(msg.Topic, topicPrefix) {
		return nil, nil
	}
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("bybit: %w: %s without data", adapter.ErrParse, msg.Topic)
	}
	if msg.Type != "snapshot" && msg.Type != "delta" {
		return nil, fmt.Errorf("bybit: %w: unexpected type %q", adapter.ErrParse, msg.Type)
	}
	var d bookData
	if err := json.Unmarshal(msg.Data, &d); err != nil {
		return nil, fmt.Errorf("bybit: %w: %s: %v", adapter.ErrParse, msg.Topic, err)
	}

	return &adapter.CanonicalUpdate{
		Bids:       adapter.ParseLevels(d.Bids, 0),
		Asks:       adapter.ParseLevels(d.Asks, 0),
		IsSnapshot: msg.Type == "snapshot",
	}, nil
}

// HeartbeatReply is nil: Bybit has no server-initiated heartbeat request.
func (v *Venue) HeartbeatReply(raw []byte) adapter.Message { return nil }

func (v *Venue) PingReply(raw []byte) adapter.Message {
	if adapter.IsTextPing(raw) {
		return pingMsg
	}
	return nil
}

// KeepAlive is the op ping Bybit expects roughly every 20 seconds.
func (v *Venue) KeepAlive() adapter.Message { return pingMsg }
