// Package feed owns the live connection to one venue and keeps its order
// book current.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/book"
	"github.com/google/uuid"
)

// Config holds the per-session timing parameters.
type Config struct {
	// NoDataTimeout bounds the wait for the first book message after
	// subscribing. Expiry surfaces ErrNoData and closes the transport.
	NoDataTimeout time.Duration

	// PingInterval is the period of client keep-alives. Zero disables them.
	PingInterval time.Duration

	// ReadTimeout is the maximum silence on an established connection
	// before it is treated as dropped.
	ReadTimeout time.Duration

	HandshakeTimeout time.Duration

	// PublishDepth limits the levels per side carried in broadcast events.
	// Zero means every level.
	PublishDepth int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NoDataTimeout:    12 * time.Second,
		PingInterval:     20 * time.Second,
		ReadTimeout:      60 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		PublishDepth:     50,
	}
}

// Session is one connection to one venue for one symbol. It moves through
// Idle -> Connecting -> AwaitingFirstData -> Streaming and ends in Error or
// Closed. A Session is never restarted; the Manager replaces it instead.
type Session struct {
	id     string
	venue  adapter.Venue
	symbol string // exchange form
	cfg    Config
	store  *book.Store
	bc     *Broadcaster
	logger *slog.Logger

	// onState, when set, is called synchronously on every transition.
	onState func(*Session, State)

	mu      sync.RWMutex
	state   State
	err     error
	ws      *adapter.WSClient
	cancel  context.CancelFunc
	closing bool

	// dialCancel aborts an in-flight Start; starting tracks it.
	dialCancel context.CancelFunc
	starting   sync.WaitGroup

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSession prepares a session for symbol on venue. bc may be nil.
func NewSession(venue adapter.Venue, symbol string, cfg Config, bc *Broadcaster, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	wire := venue.FormatSymbol(symbol)
	id := uuid.NewString()
	return &Session{
		id:     id,
		venue:  venue,
		symbol: wire,
		cfg:    cfg,
		store:  book.NewStore(venue.Name(), wire),
		bc:     bc,
		logger: logger.With("component", "feed", "session", id, "venue", venue.Name(), "symbol", wire),
	}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Venue() adapter.Exchange { return s.venue.Name() }
func (s *Session) Symbol() string          { return s.symbol }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that moved the session to StateError, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Snapshot returns a sorted copy of the book, at most depth levels per side.
func (s *Session) Snapshot(depth int) book.Snapshot {
	return s.store.SnapshotDepth(depth)
}

// View returns the canonical output for the current book and state.
func (s *Session) View(depth int) View {
	s.mu.RLock()
	state, err := s.state, s.err
	s.mu.RUnlock()
	return NewView(s.store.SnapshotDepth(depth), state, err)
}

// Start dials the venue, subscribes and starts the receive loop. It returns
// once the subscription is sent; data arrives asynchronously. A failed dial
// leaves the session in StateError with an error wrapping ErrConnect.
func (s *Session) Start(ctx context.Context) error {
	dialCtx, dialCancel := context.WithCancel(ctx)
	defer dialCancel()

	s.mu.Lock()
	switch {
	case s.closing:
		s.mu.Unlock()
		return ErrClosed
	case s.state != StateIdle:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	// Close cancels the dial and waits for Start to let go of the socket.
	s.dialCancel = dialCancel
	s.starting.Add(1)
	s.mu.Unlock()
	defer s.starting.Done()

	if strings.TrimSpace(s.symbol) == "" {
		err := fmt.Errorf("%s: %w: empty symbol", s.venue.Name(), ErrInvalidSymbol)
		s.fail(err)
		return err
	}

	s.setState(StateConnecting)
	s.logger.Info("connecting", "url", s.venue.URL())

	wsCfg := adapter.DefaultWSConfig(s.venue.URL())
	if s.cfg.ReadTimeout > 0 {
		wsCfg.ReadTimeout = s.cfg.ReadTimeout
	}
	if s.cfg.HandshakeTimeout > 0 {
		wsCfg.HandshakeTimeout = s.cfg.HandshakeTimeout
	}

	ws, err := adapter.Dial(dialCtx, wsCfg)
	if err != nil {
		if s.isClosing() {
			return fmt.Errorf("%s: %w during connect", s.venue.Name(), ErrClosed)
		}
		err = fmt.Errorf("%s: %w: %w", s.venue.Name(), ErrConnect, err)
		s.fail(err)
		return err
	}
	if err := ws.Send(s.venue.Subscribe(s.symbol)); err != nil {
		ws.Close()
		if s.isClosing() {
			return fmt.Errorf("%s: %w during connect", s.venue.Name(), ErrClosed)
		}
		err = fmt.Errorf("%s: %w: subscribe: %w", s.venue.Name(), ErrConnect, err)
		s.fail(err)
		return err
	}

	// The receive loop outlives the caller's request context; Close ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		cancel()
		ws.Close()
		return fmt.Errorf("%s: %w during connect", s.venue.Name(), ErrClosed)
	}
	s.ws = ws
	s.cancel = cancel
	s.state = StateAwaitingFirstData
	s.wg.Add(2)
	s.mu.Unlock()

	s.transition(StateAwaitingFirstData)

	frames := make(chan []byte, 256)
	errs := make(chan error, 1)
	go s.readLoop(runCtx, ws, frames, errs)
	go s.run(runCtx, ws, frames, errs)
	return nil
}

func (s *Session) isClosing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closing
}

// Close unsubscribes on a best-effort basis, stops the timers, closes the
// transport and waits for both goroutines before returning. Safe to call
// from any state and more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		dialCancel := s.dialCancel
		s.mu.Unlock()

		// A Start still dialing gives up and closes its own socket.
		if dialCancel != nil {
			dialCancel()
		}
		s.starting.Wait()

		s.mu.RLock()
		ws, cancel, state := s.ws, s.cancel, s.state
		s.mu.RUnlock()

		if ws != nil {
			if state == StateAwaitingFirstData || state == StateStreaming {
				if err := ws.Send(s.venue.Unsubscribe(s.symbol)); err != nil {
					s.logger.Debug("unsubscribe failed", "error", err)
				}
			}
			cancel()
			ws.Close()
		}
		s.wg.Wait()

		s.setState(StateClosed)
		s.logger.Info("session closed")
	})
}

func (s *Session) readLoop(ctx context.Context, ws *adapter.WSClient, frames chan<- []byte, errs chan<- error) {
	defer s.wg.Done()
	for {
		msg, err := ws.ReadMessage()
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}
		select {
		case frames <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// run processes frames strictly in arrival order and owns the no-data timer
// and the keep-alive ticker.
func (s *Session) run(ctx context.Context, ws *adapter.WSClient, frames <-chan []byte, errs <-chan error) {
	defer s.wg.Done()

	timer := time.NewTimer(s.noDataTimeout())
	defer timer.Stop()
	noData := timer.C

	var keepAlive <-chan time.Time
	if msg := s.venue.KeepAlive(); msg != nil && s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case raw := <-frames:
			if !s.handle(ws, raw) {
				continue
			}
			if noData != nil {
				timer.Stop()
				noData = nil
				s.setState(StateStreaming)
				s.logger.Info("first book received")
				continue
			}
			s.publish()

		case <-noData:
			err := fmt.Errorf("%w from %s for %s: symbol may be unsupported",
				ErrNoData, s.venue.Name(), s.symbol)
			s.fail(err)
			s.teardown(ws)
			return

		case err := <-errs:
			if ctx.Err() != nil {
				return
			}
			s.fail(fmt.Errorf("%s: %w: %w", s.venue.Name(), ErrConnect, err))
			s.teardown(ws)
			return

		case <-keepAlive:
			if err := ws.Send(s.venue.KeepAlive()); err != nil {
				// A broken transport also fails the reader, which reports it.
				s.logger.Warn("keep-alive failed", "error", err)
			}
		}
	}
}

// handle classifies one frame and reports whether it changed the book.
// Order: transport ping, venue heartbeat, control ack, book update.
func (s *Session) handle(ws *adapter.WSClient, raw []byte) bool {
	if reply := s.venue.PingReply(raw); reply != nil {
		s.reply(ws, reply)
		return false
	}
	if adapter.IsTextPong(raw) {
		return false
	}
	if reply := s.venue.HeartbeatReply(raw); reply != nil {
		s.reply(ws, reply)
		return false
	}
	if adapter.IsControl(raw) {
		s.logger.Debug("control message", "raw", string(raw))
		return false
	}

	update, err := s.venue.Parse(raw)
	if err != nil {
		s.logger.Debug("dropping message", "error", err)
		return false
	}
	if update == nil {
		return false
	}
	s.store.Apply(update)
	return true
}

func (s *Session) reply(ws *adapter.WSClient, msg adapter.Message) {
	if err := ws.Send(msg); err != nil {
		s.logger.Warn("heartbeat reply failed", "error", err)
	}
}

// teardown releases the transport after a terminal error. The reader exits
// on the closed socket or the cancelled context.
func (s *Session) teardown(ws *adapter.WSClient) {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	cancel()
	ws.Close()
}

func (s *Session) noDataTimeout() time.Duration {
	if s.cfg.NoDataTimeout > 0 {
		return s.cfg.NoDataTimeout
	}
	return DefaultConfig().NoDataTimeout
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateError
	s.err = err
	s.mu.Unlock()

	if errors.Is(err, ErrNoData) {
		s.logger.Warn("no data before timeout", "error", err)
	} else {
		s.logger.Error("session failed", "error", err)
	}
	s.transition(StateError)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == st || (s.state.Terminal() && st != StateClosed) {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()
	s.transition(st)
}

func (s *Session) transition(st State) {
	if s.onState != nil {
		s.onState(s, st)
	}
	s.publish()
}

// publish broadcasts the current book and state to any subscribers.
func (s *Session) publish() {
	if s.bc == nil || !s.bc.HasSubscribers() {
		return
	}
	s.mu.RLock()
	state, err := s.state, s.err
	s.mu.RUnlock()

	s.bc.Publish(Event{
		SessionID: s.id,
		Venue:     s.venue.Name(),
		Symbol:    s.symbol,
		State:     state,
		Err:       err,
		Book:      s.store.SnapshotDepth(s.cfg.PublishDepth),
	})
}
