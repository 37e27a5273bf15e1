package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/venues"
	"github.com/gorilla/websocket"
)

const okxBooks5 = `{"arg":{"channel":"books5","instId":"BTC-USDT"},"data":[{"asks":[["101","2","0","1"]],"bids":[["100","4","0","1"]],"ts":"1700000000000"}]}`

func TestManager_SelectSwitchesSessions(t *testing.T) {
	bybitSrv := newFakeVenue(t, func(c *websocket.Conn) { send(c, bybitSnapshot) })
	okxSrv := newFakeVenue(t, func(c *websocket.Conn) { send(c, okxBooks5) })

	reg := venues.New(venues.URLs{Bybit: bybitSrv.url(), OKX: okxSrv.url()})
	m := NewManager(reg, testConfig(), nil, nil)
	defer m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := m.Select(ctx, "bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("Select bybit: %v", err)
	}
	waitFor(t, "bybit streaming", func() bool { return first.State() == StateStreaming })

	second, err := m.Select(ctx, "OKX", "BTC-USDT")
	if err != nil {
		t.Fatalf("Select okx: %v", err)
	}
	if first.State() != StateClosed {
		t.Fatalf("previous session must be closed before the next starts, got %s", first.State())
	}
	if m.Current() != second {
		t.Fatal("Current should return the new session")
	}
	bybitSrv.expect(t, `{"op":"unsubscribe","args":["orderbook.50.BTCUSDT"]}`)

	waitFor(t, "okx streaming", func() bool { return second.State() == StateStreaming })
	v := second.View(5)
	if v.Venue != "okx" || len(v.Bids) != 1 || v.Bids[0] != [2]float64{100, 4} {
		t.Fatalf("new session must start from an empty book, got %+v", v)
	}
}

func TestManager_UnknownVenueKeepsCurrent(t *testing.T) {
	fv := newFakeVenue(t, func(c *websocket.Conn) { send(c, bybitSnapshot) })
	m := NewManager(venues.New(venues.URLs{Bybit: fv.url()}), testConfig(), nil, nil)
	defer m.Stop()

	s, err := m.Select(context.Background(), "bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if _, err := m.Select(context.Background(), "kraken", "BTCUSD"); !errors.Is(err, adapter.ErrUnknownVenue) {
		t.Fatalf("expected ErrUnknownVenue, got %v", err)
	}
	if m.Current() != s || s.State().Terminal() {
		t.Fatal("config error must not disturb the active session")
	}
}

func TestManager_StopAndStateHook(t *testing.T) {
	fv := newFakeVenue(t, func(c *websocket.Conn) { send(c, bybitSnapshot) })
	m := NewManager(venues.New(venues.URLs{Bybit: fv.url()}), testConfig(), nil, nil)

	var mu sync.Mutex
	var seen []State
	m.OnState(func(_ *Session, st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	s, err := m.Select(context.Background(), "bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	waitFor(t, "streaming", func() bool { return s.State() == StateStreaming })

	m.Stop()
	if m.Current() != nil {
		t.Fatal("expected empty slot after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateAwaitingFirstData, StateStreaming, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, seen)
		}
	}
}

func TestManager_SelectReturnsFailedSession(t *testing.T) {
	fv := newFakeVenue(t, nil)
	url := fv.url()
	fv.srv.Close()

	m := NewManager(venues.New(venues.URLs{Bybit: url}), testConfig(), nil, nil)
	defer m.Stop()

	s, err := m.Select(context.Background(), "bybit", "BTCUSDT")
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if s == nil || s.State() != StateError || m.Current() != s {
		t.Fatal("failed session should stay selected so its error is visible")
	}
}
