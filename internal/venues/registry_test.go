package venues

import (
	"errors"
	"testing"

	"github.com/caesar-terminal/depthsim/internal/adapter"
)

func TestLookup(t *testing.T) {
	r := New(URLs{OKX: "ws://127.0.0.1:1/okx"})

	for _, name := range []string{"bybit", "OKX", " Deribit "} {
		if _, err := r.Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}

	v, _ := r.Lookup("okx")
	if v.URL() != "ws://127.0.0.1:1/okx" {
		t.Fatalf("URL override ignored: %s", v.URL())
	}
	v, _ = r.Lookup("bybit")
	if v.URL() == "" {
		t.Fatal("expected default bybit URL")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := New(URLs{}).Lookup("binance")
	if !errors.Is(err, adapter.ErrUnknownVenue) {
		t.Fatalf("expected ErrUnknownVenue, got %v", err)
	}
}

func TestNames(t *testing.T) {
	names := New(URLs{}).Names()
	want := []string{"bybit", "deribit", "okx"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
