package rpc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/caesar-terminal/depthsim/internal/feed"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps the gRPC server and its Unix Domain Socket listener.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	handler    *Handler
	listener   net.Listener
	socketPath string
}

// New creates a DepthService server bound to the given UDS path. The
// standard health service reports SERVING only while the active session is
// streaming.
func New(socketPath string, handler *Handler) (*Server, error) {
	// Ensure the socket directory exists.
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	// Remove any stale socket file from a previous run.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on unix socket %s: %w", socketPath, err)
	}

	// Restrict socket permissions to owner only.
	if err := os.Chmod(socketPath, 0o600); err != nil {
		lis.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	gs := grpc.NewServer()
	RegisterDepthServer(gs, handler)

	hs := health.NewServer()
	setServing(hs, false)
	healthpb.RegisterHealthServer(gs, hs)

	handler.manager.OnState(func(_ *feed.Session, st feed.State) {
		setServing(hs, st == feed.StateStreaming)
	})
	if s := handler.manager.Current(); s != nil {
		setServing(hs, s.State() == feed.StateStreaming)
	}

	return &Server{
		grpcServer: gs,
		health:     hs,
		handler:    handler,
		listener:   lis,
		socketPath: socketPath,
	}, nil
}

func setServing(hs *health.Server, ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
}

// Serve starts accepting gRPC connections. It blocks until the server
// is stopped or an error occurs.
func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

// GracefulStop ends open Watch streams and pending delayed simulations,
// drains the remaining RPCs and cleans up the socket file.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.handler.Shutdown()
	s.grpcServer.GracefulStop()
	os.Remove(s.socketPath)
}

// Stop closes all connections immediately and cleans up the socket file.
func (s *Server) Stop() {
	s.grpcServer.Stop()
	os.Remove(s.socketPath)
}
