package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/whisper/chat-client/internal/auth"
	"github.com/whisper/chat-client/internal/config"
	"github.com/whisper/chat-client/internal/session"
	"github.com/whisper/chat-client/internal/token"
	"github.com/whisper/chat-client/internal/ws"
)

// loadConfig merges defaults, the config file, the environment and the
// flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = flagServerURL
	}
	if flags.Changed("token-store") {
		cfg.Token.Store = flagTokenStore
	}
	if flags.Changed("token-path") {
		cfg.Token.Path = flagTokenPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("nats-url") {
		cfg.NATS.URL = flagNATSURL
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = flagMetricsAddr
	}
}

// setupLogger writes to the log file when the terminal is taken by the
// interactive view, and to stderr otherwise. The returned closer releases
// the file.
func setupLogger(cfg config.LogConfig, interactive bool) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	var closer io.Closer = nopCloser{}
	if interactive {
		if cfg.File == "" {
			out = io.Discard
		} else {
			if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
			}
			f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
			}
			out, closer = f, f
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// tokenStore is a token.Store that may hold resources.
type tokenStore interface {
	token.Store
	io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type memoryStore struct {
	*token.MemoryStore
	nopCloser
}

func openTokenStore(cfg config.TokenConfig) (tokenStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memoryStore{MemoryStore: token.NewMemoryStore()}, nil
	case config.StorePebble:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create token dir: %w", err)
		}
		store, err := token.OpenPebbleStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreRedis:
		store, err := token.NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.Store)
	}
}

// newSession wires a session to the configured chat service.
func newSession(cfg config.Config, view session.View, store token.Store, logger zerolog.Logger, notifiers ...session.Notifier) *session.Session {
	authClient := auth.NewClient(cfg.ServerURL, &http.Client{Timeout: 15 * time.Second})
	dialer := ws.NewDialer(ws.DialerConfig{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
	})
	return session.New(session.Config{
		ServerURL:           cfg.ServerURL,
		HeartbeatInterval:   cfg.Session.HeartbeatInterval,
		ReconnectDelay:      cfg.Session.ReconnectDelay,
		TypingIdle:          cfg.Session.TypingIdle,
		RemoteTypingTimeout: cfg.Session.RemoteTypingTimeout,
	}, authClient, dialer, view,
		session.WithLogger(logger),
		session.WithTokenStore(store),
		session.WithNotifiers(notifiers...),
	)
}
