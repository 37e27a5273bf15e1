package feed

import "errors"

// State is the lifecycle position of a Session.
type State uint8

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingFirstData
	StateStreaming
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingFirstData:
		return "awaiting_first_data"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Loading reports whether the session has not yet delivered its first book.
func (s State) Loading() bool {
	return s == StateIdle || s == StateConnecting || s == StateAwaitingFirstData
}

// Terminal reports whether the session can no longer deliver data.
func (s State) Terminal() bool {
	return s == StateError || s == StateClosed
}

// Sentinel errors surfaced by sessions. Messages carry the venue.
var (
	// ErrConnect covers dial failures and dropped transports. There is no
	// automatic retry.
	ErrConnect = errors.New("connection failed")
	// ErrNoData means the venue accepted the connection but sent no book
	// data before the no-data timeout.
	ErrNoData = errors.New("no data received")
	// ErrInvalidSymbol rejects empty symbols before any connection is made.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrClosed is returned when Start races with or follows Close.
	ErrClosed = errors.New("session closed")
	// ErrAlreadyStarted is returned by a second Start on the same Session.
	ErrAlreadyStarted = errors.New("session already started")
)
