// Package rpc exposes the active order book and the simulation engine over
// gRPC on a Unix domain socket.
package rpc

import (
	"context"

	"github.com/caesar-terminal/depthsim/internal/engine"
	"github.com/caesar-terminal/depthsim/internal/feed"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "depth.v1.DepthService"

const (
	methodSelect   = "/" + ServiceName + "/Select"
	methodBook     = "/" + ServiceName + "/Book"
	methodSimulate = "/" + ServiceName + "/Simulate"
	methodWatch    = "/" + ServiceName + "/Watch"
)

// SelectRequest switches the active (venue, symbol) slot.
type SelectRequest struct {
	Venue  string `json:"venue"`
	Symbol string `json:"symbol"`
}

// BookRequest asks for the current view. Depth <= 0 uses the server default.
type BookRequest struct {
	Depth int `json:"depth"`
}

// SimulateRequest is a hypothetical order. Side and Type are parsed by the
// server so bad values map to InvalidArgument.
type SimulateRequest struct {
	Side         string              `json:"side"`
	Type         string              `json:"type"`
	LimitPrice   decimal.NullDecimal `json:"limitPrice"`
	Quantity     decimal.Decimal     `json:"quantity"`
	DelaySeconds int                 `json:"delaySeconds"`
}

// WatchRequest opens a stream of views. Depth <= 0 uses the server default.
type WatchRequest struct {
	Depth int `json:"depth"`
}

// DepthServer is the server API for DepthService.
type DepthServer interface {
	Select(context.Context, *SelectRequest) (*feed.View, error)
	Book(context.Context, *BookRequest) (*feed.View, error)
	Simulate(context.Context, *SimulateRequest) (*engine.Result, error)
	Watch(*WatchRequest, DepthWatchServer) error
}

// DepthWatchServer is the server side of a Watch stream.
type DepthWatchServer interface {
	Send(*feed.View) error
	grpc.ServerStream
}

type depthWatchServer struct {
	grpc.ServerStream
}

func (x *depthWatchServer) Send(v *feed.View) error {
	return x.ServerStream.SendMsg(v)
}

// RegisterDepthServer registers srv on s.
func RegisterDepthServer(s grpc.ServiceRegistrar, srv DepthServer) {
	s.RegisterService(&serviceDesc, srv)
}

func selectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SelectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DepthServer).Select(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSelect}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DepthServer).Select(ctx, req.(*SelectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func bookHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DepthServer).Book(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodBook}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DepthServer).Book(ctx, req.(*BookRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SimulateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DepthServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSimulate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DepthServer).Simulate(ctx, req.(*SimulateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DepthServer).Watch(in, &depthWatchServer{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DepthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Select", Handler: selectHandler},
		{MethodName: "Book", Handler: bookHandler},
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}
