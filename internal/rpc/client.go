package rpc

import (
	"context"
	"fmt"

	"github.com/caesar-terminal/depthsim/internal/engine"
	"github.com/caesar-terminal/depthsim/internal/feed"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client is a DepthService client over a Unix domain socket.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix:"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Select switches the daemon's active venue and symbol.
func (c *Client) Select(ctx context.Context, venue, symbol string) (*feed.View, error) {
	out := new(feed.View)
	err := c.conn.Invoke(ctx, methodSelect, &SelectRequest{Venue: venue, Symbol: symbol}, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Book fetches the current view with at most depth levels per side.
func (c *Client) Book(ctx context.Context, depth int) (*feed.View, error) {
	out := new(feed.View)
	err := c.conn.Invoke(ctx, methodBook, &BookRequest{Depth: depth}, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Simulate runs req against the daemon's active book.
func (c *Client) Simulate(ctx context.Context, req *SimulateRequest) (*engine.Result, error) {
	out := new(engine.Result)
	err := c.conn.Invoke(ctx, methodSimulate, req, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens a view stream. Cancel ctx to end it.
func (c *Client) Watch(ctx context.Context, depth int) (*WatchStream, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], methodWatch, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{Depth: depth}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{stream: stream}, nil
}

// Health reports the daemon's serving status for the depth service.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// WatchStream is the client side of a Watch call.
type WatchStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next view. It returns io.EOF when the server ends
// the stream.
func (w *WatchStream) Recv() (*feed.View, error) {
	v := new(feed.View)
	if err := w.stream.RecvMsg(v); err != nil {
		return nil, err
	}
	return v, nil
}
