package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	Feed     FeedConfig
	RPC      RPCConfig
	Redis    RedisConfig
}

// FeedConfig holds the default selection and session timing.
type FeedConfig struct {
	Venue            string        `mapstructure:"venue"`
	Symbol           string        `mapstructure:"symbol"`
	NoDataTimeout    time.Duration `mapstructure:"no_data_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PublishDepth     int           `mapstructure:"publish_depth"`
	BybitURL         string        `mapstructure:"bybit_url"`
	OKXURL           string        `mapstructure:"okx_url"`
	DeribitURL       string        `mapstructure:"deribit_url"`
}

// RPCConfig holds local service settings.
type RPCConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// RedisConfig holds Redis connection settings for the top-of-book
// projection.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads configuration from an optional file (any format viper
// understands) and environment variables prefixed with DEPTHSIM_. A .env
// file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DEPTHSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	// Feed defaults
	v.SetDefault("feed.venue", "bybit")
	v.SetDefault("feed.symbol", "BTCUSDT")
	v.SetDefault("feed.no_data_timeout", 12*time.Second)
	v.SetDefault("feed.read_timeout", 60*time.Second)
	v.SetDefault("feed.handshake_timeout", 10*time.Second)
	v.SetDefault("feed.ping_interval", 20*time.Second)
	v.SetDefault("feed.publish_depth", 50)
	v.SetDefault("feed.bybit_url", "wss://stream.bybit.com/v5/public/spot")
	v.SetDefault("feed.okx_url", "wss://ws.okx.com:8443/ws/v5/public")
	v.SetDefault("feed.deribit_url", "wss://www.deribit.com/ws/api/v2")

	// RPC defaults
	v.SetDefault("rpc.socket_path", "/tmp/depthsim/depthsim.sock")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.LogLevel = v.GetString("log_level")

	cfg.Feed = FeedConfig{
		Venue:            v.GetString("feed.venue"),
		Symbol:           v.GetString("feed.symbol"),
		NoDataTimeout:    v.GetDuration("feed.no_data_timeout"),
		ReadTimeout:      v.GetDuration("feed.read_timeout"),
		HandshakeTimeout: v.GetDuration("feed.handshake_timeout"),
		PingInterval:     v.GetDuration("feed.ping_interval"),
		PublishDepth:     v.GetInt("feed.publish_depth"),
		BybitURL:         v.GetString("feed.bybit_url"),
		OKXURL:           v.GetString("feed.okx_url"),
		DeribitURL:       v.GetString("feed.deribit_url"),
	}

	cfg.RPC = RPCConfig{
		SocketPath: v.GetString("rpc.socket_path"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("redis.enabled"),
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	return cfg, nil
}

// Validate checks the loaded values. Load does not call it.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	f := c.Feed
	if strings.TrimSpace(f.Venue) == "" {
		return fmt.Errorf("%w: feed.venue is empty", ErrInvalid)
	}
	for name, d := range map[string]time.Duration{
		"feed.no_data_timeout":   f.NoDataTimeout,
		"feed.read_timeout":      f.ReadTimeout,
		"feed.handshake_timeout": f.HandshakeTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, name, d)
		}
	}
	if f.PingInterval < 0 {
		return fmt.Errorf("%w: feed.ping_interval must not be negative", ErrInvalid)
	}
	if f.PublishDepth < 0 {
		return fmt.Errorf("%w: feed.publish_depth must not be negative", ErrInvalid)
	}
	for name, u := range map[string]string{
		"feed.bybit_url":   f.BybitURL,
		"feed.okx_url":     f.OKXURL,
		"feed.deribit_url": f.DeribitURL,
	} {
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return fmt.Errorf("%w: %s must be a ws:// or wss:// URL, got %q", ErrInvalid, name, u)
		}
	}

	if c.RPC.SocketPath == "" {
		return fmt.Errorf("%w: rpc.socket_path is empty", ErrInvalid)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is empty", ErrInvalid)
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalid, s)
	}
}
