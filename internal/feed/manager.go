package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/caesar-terminal/depthsim/internal/adapter"
)

// Resolver finds the adapter for a venue name. Satisfied by
// venues.Registry.
type Resolver interface {
	Lookup(name string) (adapter.Venue, error)
}

// StateFunc observes session transitions. It runs on the session's
// goroutine and must not block.
type StateFunc func(s *Session, st State)

// Manager owns the single active (venue, symbol) slot. Switching closes the
// current session completely before the next one dials, so two sessions
// never deliver into the slot at once.
type Manager struct {
	resolver Resolver
	cfg      Config
	bc       *Broadcaster
	logger   *slog.Logger

	// selectMu serialises Select and Stop.
	selectMu sync.Mutex

	mu       sync.RWMutex
	current  *Session
	onStates []StateFunc
}

// NewManager creates a Manager with no active session. bc may be nil.
func NewManager(resolver Resolver, cfg Config, bc *Broadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		resolver: resolver,
		cfg:      cfg,
		bc:       bc,
		logger:   logger,
	}
}

// OnState registers fn for every transition of every future session.
func (m *Manager) OnState(fn StateFunc) {
	m.mu.Lock()
	m.onStates = append(m.onStates, fn)
	m.mu.Unlock()
}

// Select replaces the active session with one for (venue, symbol). An
// unknown venue fails before the current session is touched. Otherwise the
// new session is returned even when its Start fails, so callers can report
// its state.
func (m *Manager) Select(ctx context.Context, venue, symbol string) (*Session, error) {
	v, err := m.resolver.Lookup(venue)
	if err != nil {
		return nil, err
	}

	m.selectMu.Lock()
	defer m.selectMu.Unlock()

	if old := m.swap(nil); old != nil {
		old.Close()
	}

	s := NewSession(v, symbol, m.cfg, m.bc, m.logger)
	s.onState = m.notify
	m.swap(s)

	m.logger.Info("selected", "venue", v.Name(), "symbol", s.Symbol(), "session", s.ID())
	return s, s.Start(ctx)
}

// Current returns the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Stop closes the active session and leaves the slot empty.
func (m *Manager) Stop() {
	m.selectMu.Lock()
	defer m.selectMu.Unlock()

	if old := m.swap(nil); old != nil {
		old.Close()
	}
}

func (m *Manager) swap(s *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.current
	m.current = s
	return old
}

func (m *Manager) notify(s *Session, st State) {
	m.mu.RLock()
	fns := m.onStates
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(s, st)
	}
}
