package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/caesar-terminal/depthsim/internal/adapter"
	"github.com/caesar-terminal/depthsim/internal/engine"
	"github.com/caesar-terminal/depthsim/internal/feed"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxDelay bounds SimulateRequest.DelaySeconds.
const MaxDelay = 60 * time.Second

// Handler implements DepthServer on top of a feed.Manager.
type Handler struct {
	manager *feed.Manager
	bc      *feed.Broadcaster
	depth   int
	logger  *slog.Logger

	// done is closed by Shutdown.
	done     chan struct{}
	doneOnce sync.Once
}

// NewHandler creates a Handler. depth is the level count per side used when
// a request does not set one.
func NewHandler(manager *feed.Manager, bc *feed.Broadcaster, depth int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if depth <= 0 {
		depth = 50
	}
	return &Handler{
		manager: manager,
		bc:      bc,
		depth:   depth,
		logger:  logger.With("component", "rpc"),
		done:    make(chan struct{}),
	}
}

// Shutdown ends all open Watch streams and any Simulate still waiting out
// its delay. Safe to call more than once.
func (h *Handler) Shutdown() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Select switches the active slot and returns the new session's view.
func (h *Handler) Select(ctx context.Context, req *SelectRequest) (*feed.View, error) {
	if req.Venue == "" {
		return nil, status.Errorf(codes.InvalidArgument, "venue is required")
	}
	if req.Symbol == "" {
		return nil, status.Errorf(codes.InvalidArgument, "symbol is required")
	}

	s, err := h.manager.Select(ctx, req.Venue, req.Symbol)
	if err != nil {
		switch {
		case errors.Is(err, adapter.ErrUnknownVenue), errors.Is(err, feed.ErrInvalidSymbol):
			return nil, status.Errorf(codes.InvalidArgument, "%v", err)
		case errors.Is(err, feed.ErrConnect):
			return nil, status.Errorf(codes.Unavailable, "%v", err)
		default:
			return nil, status.Errorf(codes.Internal, "select failed: %v", err)
		}
	}

	v := s.View(h.depth)
	return &v, nil
}

// Book returns the current view of the active session.
func (h *Handler) Book(_ context.Context, req *BookRequest) (*feed.View, error) {
	s := h.manager.Current()
	if s == nil {
		return nil, status.Errorf(codes.FailedPrecondition, "no venue selected")
	}
	v := s.View(h.depthOr(req.Depth))
	return &v, nil
}

// Simulate validates the order, waits the requested delay, then walks a
// fresh snapshot of the active book.
func (h *Handler) Simulate(ctx context.Context, req *SimulateRequest) (*engine.Result, error) {
	order, err := toOrder(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if err := engine.Validate(order); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	maxSeconds := int(MaxDelay / time.Second)
	if req.DelaySeconds < 0 || req.DelaySeconds > maxSeconds {
		return nil, status.Errorf(codes.InvalidArgument, "delaySeconds must be within 0..%d", maxSeconds)
	}
	if delay := time.Duration(req.DelaySeconds) * time.Second; delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		case <-h.done:
			return nil, status.Errorf(codes.Unavailable, "server shutting down")
		}
	}

	s := h.manager.Current()
	if s == nil {
		return nil, status.Errorf(codes.FailedPrecondition, "no venue selected")
	}
	if st := s.State(); st != feed.StateStreaming {
		return nil, status.Errorf(codes.FailedPrecondition, "%s %s is %s", s.Venue(), s.Symbol(), st)
	}

	snap := s.Snapshot(0)
	res := engine.Simulate(order, snap.Bids, snap.Asks)

	h.logger.Info("simulated order",
		"venue", s.Venue(),
		"symbol", s.Symbol(),
		"side", order.Side,
		"type", order.Type,
		"quantity", order.Quantity.String(),
		"filled", res.FilledQuantity.String(),
		"impact_pct", res.MarketImpactPercent.StringFixed(2),
	)
	return &res, nil
}

// Watch streams a view of the active session on every book change until
// the client goes away or the handler shuts down.
func (h *Handler) Watch(req *WatchRequest, stream DepthWatchServer) error {
	depth := h.depthOr(req.Depth)

	events, cancel := h.bc.Subscribe()
	defer cancel()

	if s := h.manager.Current(); s != nil {
		v := s.View(depth)
		if err := stream.Send(&v); err != nil {
			return err
		}
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			v := feed.NewView(ev.Book.Truncate(depth), ev.State, ev.Err)
			if err := stream.Send(&v); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) depthOr(n int) int {
	if n > 0 {
		return n
	}
	return h.depth
}

func toOrder(req *SimulateRequest) (engine.SimulatedOrder, error) {
	side, err := engine.ParseSide(req.Side)
	if err != nil {
		return engine.SimulatedOrder{}, err
	}
	typ, err := engine.ParseOrderType(req.Type)
	if err != nil {
		return engine.SimulatedOrder{}, err
	}
	return engine.SimulatedOrder{
		Side:       side,
		Type:       typ,
		LimitPrice: req.LimitPrice,
		Quantity:   req.Quantity,
	}, nil
}
