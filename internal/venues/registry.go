// Package venues maps venue names to their adapters.
package venues

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/adapter/bybit"
	"github.com/caesar-terminal/depthsim/internal/adapter/deribit"
	"github.com/caesar-terminal/depthsim/internal/adapter/okx"
)

// URLs overrides the public endpoint per venue. Empty fields keep the
// adapter default.
type URLs struct {
	Bybit   string
	OKX     string
	Deribit string
}

// Registry is an immutable set of venue adapters built at process start.
type Registry struct {
	venues map[adapter.Exchange]adapter.Venue
}

// New builds the registry of every supported venue.
func New(urls URLs) *Registry {
	r := &Registry{venues: make(map[adapter.Exchange]adapter.Venue, 3)}
	for _, v := range []adapter.Venue{
		bybit.New(urls.Bybit),
		okx.New(urls.OKX),
		deribit.New(urls.Deribit),
	} {
		r.venues[v.Name()] = v
	}
	return r
}

// Lookup returns the adapter for name, case-insensitively.
func (r *Registry) Lookup(name string) (adapter.Venue, error) {
	v, ok := r.venues[adapter.Exchange(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", adapter.ErrUnknownVenue, name)
	}
	return v, nil
}

// Names returns the registered venue names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.venues))
	for name := range r.venues {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
