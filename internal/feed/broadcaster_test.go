package feed

import (
	"testing"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
)

func TestBroadcaster_FanOut(t *testing.T) {
	bc := NewBroadcaster(4, nil)
	a, cancelA := bc.Subscribe()
	b, cancelB := bc.Subscribe()
	defer cancelA()
	defer cancelB()

	bc.Publish(Event{Venue: adapter.ExchangeBybit, Symbol: "BTCUSDT", State: StateStreaming})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Venue != adapter.ExchangeBybit || ev.State != StateStreaming {
				t.Fatalf("unexpected event %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	bc := NewBroadcaster(1, nil)
	_, cancel := bc.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bc.Publish(Event{Symbol: "X"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	bc := NewBroadcaster(4, nil)
	if bc.HasSubscribers() {
		t.Fatal("expected no subscribers")
	}
	ch, cancel := bc.Subscribe()
	if !bc.HasSubscribers() {
		t.Fatal("expected a subscriber")
	}
	cancel()
	cancel()
	if bc.HasSubscribers() {
		t.Fatal("expected subscriber removed")
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
	bc.Publish(Event{})
}
