// Command depthsim streams one venue's order book, keeps it current and
// serves book views and order simulations over a local gRPC socket.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/caesar-terminal/depthsim/internal/config"
	"github.com/caesar-terminal/depthsim/internal/feed"
	"github.com/caesar-terminal/depthsim/internal/publish"
	"github.com/caesar-terminal/depthsim/internal/rpc"
	"github.com/caesar-terminal/depthsim/internal/venues"
)

func main() {
	configPath := flag.String("config", "", "path to an optional configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("depthsim starting",
		"env", cfg.Env,
		"socket", cfg.RPC.SocketPath,
		"venue", cfg.Feed.Venue,
		"symbol", cfg.Feed.Symbol,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("depthsim stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("depthsim stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := venues.New(venues.URLs{
		Bybit:   cfg.Feed.BybitURL,
		OKX:     cfg.Feed.OKXURL,
		Deribit: cfg.Feed.DeribitURL,
	})
	logger.Info("venues registered", "venues", registry.Names())

	bc := feed.NewBroadcaster(256, logger)
	manager := feed.NewManager(registry, feed.Config{
		NoDataTimeout:    cfg.Feed.NoDataTimeout,
		PingInterval:     cfg.Feed.PingInterval,
		ReadTimeout:      cfg.Feed.ReadTimeout,
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		PublishDepth:     cfg.Feed.PublishDepth,
	}, bc, logger)
	defer manager.Stop()

	var (
		redis *publish.Client
		err   error
	)
	if cfg.Redis.Enabled {
		redis, err = publish.NewClient(ctx, publish.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer redis.Close()
		logger.Info("redis projection enabled", "addr", cfg.Redis.Addr)
	}

	srv, err := rpc.New(cfg.RPC.SocketPath, rpc.NewHandler(manager, bc, cfg.Feed.PublishDepth, logger))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		manager.Stop()
		srv.GracefulStop()
		return nil
	})

	if redis != nil {
		events, unsubscribe := bc.Subscribe()
		writer := publish.NewRedisWriter(redis, events, logger)
		g.Go(func() error {
			defer unsubscribe()
			writer.Run(gctx)
			return nil
		})
	}

	// The initial selection may fail (venue down, symbol unknown); the
	// daemon keeps serving so a client can pick another.
	if _, err := manager.Select(gctx, cfg.Feed.Venue, cfg.Feed.Symbol); err != nil {
		logger.Warn("initial selection failed", "venue", cfg.Feed.Venue, "symbol", cfg.Feed.Symbol, "error", err)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
