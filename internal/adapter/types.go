package adapter

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Exchange identifies the source of market data.
type Exchange string

const (
	ExchangeBybit   Exchange = "bybit"
	ExchangeOKX     Exchange = "okx"
	ExchangeDeribit Exchange = "deribit"
)

// Sentinel errors shared by all venue adapters.
var (
	// ErrUnknownVenue is returned when a venue name has no registered adapter.
	ErrUnknownVenue = errors.New("unknown venue")
	// ErrParse marks a raw message that looked like a book update but could
	// not be decoded. Sessions drop the message and keep streaming.
	ErrParse = errors.New("unparseable message")
)

// PriceLevel represents a single bid or ask at a given price. A zero Size in
// a delta removes the level.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// CanonicalUpdate is the venue-neutral form of one book message. It is built
// by a Venue from a single raw frame and consumed once by the order book.
type CanonicalUpdate struct {
	Bids       []PriceLevel
	Asks       []PriceLevel
	IsSnapshot bool
}

// Message is an outbound text frame, usually JSON.
type Message []byte

// Venue translates between the canonical model and one exchange's wire
// protocol. Implementations are stateless and safe for concurrent use.
type Venue interface {
	// Name returns the exchange identifier.
	Name() Exchange

	// URL returns the public WebSocket endpoint.
	URL() string

	// FormatSymbol converts a user symbol (e.g. "BTC-USDT") into the form the
	// exchange expects. It is idempotent on input already in exchange form.
	FormatSymbol(symbol string) string

	// Subscribe and Unsubscribe build the control messages for the book
	// channel of an exchange-form symbol.
	Subscribe(symbol string) Message
	Unsubscribe(symbol string) Message

	// Parse returns (nil, nil) for messages that are not book updates and an
	// error wrapping ErrParse for malformed book payloads.
	Parse(raw []byte) (*CanonicalUpdate, error)

	// HeartbeatReply returns the application-level response to a venue
	// heartbeat request, or nil when raw is not one.
	HeartbeatReply(raw []byte) Message

	// PingReply returns the response to a text-level transport ping, or nil.
	PingReply(raw []byte) Message

	// KeepAlive returns the message sent periodically to keep the connection
	// open, or nil when the venue needs none.
	KeepAlive() Message
}
