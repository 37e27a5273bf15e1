package okx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caesar-terminal/depthsim/internal/adapter"
)

// DefaultURL is the OKX v5 public stream.
const DefaultURL = "wss://ws.okx.com:8443/ws/v5/public"

const channel = "books5"

// Quote assets recognised when a symbol arrives without a separator. Longer
// suffixes come first so "USDT" wins over "USD".
var quoteAssets = []string{"USDT", "USDC", "USD", "BTC", "ETH", "EUR"}

type arg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type opMsg struct {
	Op   string `json:"op"`
	Args []arg  `json:"args"`
}

type rawBook struct {
	Arg  arg `json:"arg"`
	Data []struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
		Ts   string              `json:"ts"`
	} `json:"data"`
}

var (
	pingMsg = adapter.Message("ping")
	pongMsg = adapter.Message("pong")
)

// Venue speaks the OKX v5 books5 protocol. books5 re-sends the full top five
// levels on every push, so every update is treated as a snapshot.
type Venue struct {
	url string
}

// New returns an OKX venue. An empty url selects DefaultURL.
func New(url string) *Venue {
	if url == "" {
		url = DefaultURL
	}
	return &Venue{url: url}
}

func (v *Venue) Name() adapter.Exchange { return adapter.ExchangeOKX }

func (v *Venue) URL() string { return v.url }

// FormatSymbol returns the hyphenated instrument id: "btcusdt" -> "BTC-USDT".
func (v *Venue) FormatSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "-", "_", "-").Replace(s)
	if strings.Contains(s, "-") {
		return s
	}
	for _, q := range quoteAssets {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return s[:len(s)-len(q)] + "-" + q
		}
	}
	return s
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
		Args: []arg{{Channel: channel, InstID: symbol}},
	})
	return msg
}

// Parse decodes books5 pushes. Only the first data entry is used.
func (v *Venue) Parse(raw []byte) (*adapter.CanonicalUpdate, error) {
	var msg rawBook
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("okx: %w: %v", adapter.ErrParse, err)
	}
	if msg.Arg.Channel != channel || len(msg.Data) == 0 {
		return nil, nil
	}

	d := msg.Data[0]
	return &adapter.CanonicalUpdate{
		Bids:       adapter.ParseLevels(d.Bids, 0),
		Asks:       adapter.ParseLevels(d.Asks, 0),
		IsSnapshot: true,
	}, nil
}

func (v *Venue) HeartbeatReply(raw []byte) adapter.Message { return nil }

func (v *Venue) PingReply(raw []byte) adapter.Message {
	if adapter.IsTextPing(raw) {
		return pongMsg
	}
	return nil
}

// KeepAlive is the bare "ping" OKX answers with "pong". The server drops
// connections that stay silent for 30 seconds.
func (v *Venue) KeepAlive() adapter.Message { return pingMsg }
