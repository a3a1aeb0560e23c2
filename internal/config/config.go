// Package config loads client settings: built-in defaults, then an optional
// YAML file, then CHAT_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Token store kinds.
const (
	StoreMemory = "memory"
	StorePebble = "pebble"
	StoreRedis  = "redis"
)

// Config is the full client configuration.
type Config struct {
	ServerURL string          `yaml:"server_url"`
	Token     TokenConfig     `yaml:"token"`
	Session   SessionConfig   `yaml:"session"`
	Transport TransportConfig `yaml:"transport"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`
}

// TokenConfig selects where the access token is kept.
type TokenConfig struct {
	Store       string `yaml:"store"`        // memory | pebble | redis
	Path        string `yaml:"path"`         // pebble directory
	RedisAddr   string `yaml:"redis_addr"`   // localhost:6379
	RedisPrefix string `yaml:"redis_prefix"` // key prefix
}

// SessionConfig holds the session timers.
type SessionConfig struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`    // default: 30s
	ReconnectDelay      time.Duration `yaml:"reconnect_delay"`       // default: 5s
	TypingIdle          time.Duration `yaml:"typing_idle"`           // default: 2s
	RemoteTypingTimeout time.Duration `yaml:"remote_typing_timeout"` // default: 3s
}

// TransportConfig holds WebSocket timeouts.
type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // default: 10s
	WriteTimeout     time.Duration `yaml:"write_timeout"`     // default: 10s
}

// NATSConfig enables the notification publisher.
type NATSConfig struct {
	URL string `yaml:"url"` // empty disables notifications over NATS
}

// MetricsConfig enables the metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
	File  string `yaml:"file"`  // interactive mode logs here
}

// UIConfig holds terminal view settings.
type UIConfig struct {
	NoticeTimeout time.Duration `yaml:"notice_timeout"` // default: 3.5s
	Scrollback    int           `yaml:"scrollback"`     // transcript lines kept
	Bell          bool          `yaml:"bell"`           // ring on incoming messages
}

// Default returns the built-in configuration.
func Default() Config {
	dir := defaultDataDir()
	return Config{
		ServerURL: "http://localhost:8000",
		Token: TokenConfig{
			Store:       StorePebble,
			Path:        filepath.Join(dir, "token"),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "whisper:client:",
		},
		Session: SessionConfig{
			HeartbeatInterval:   30 * time.Second,
			ReconnectDelay:      5 * time.Second,
			TypingIdle:          2 * time.Second,
			RemoteTypingTimeout: 3 * time.Second,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "client.log"),
		},
		UI: UIConfig{
			NoticeTimeout: 3500 * time.Millisecond,
			Scrollback:    500,
			Bell:          true,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "whisper-chat")
	}
	return ".whisper-chat"
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays CHAT_* environment variables. Unparseable numbers and
// durations are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CHAT_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("CHAT_TOKEN_STORE"); v != "" {
		c.Token.Store = strings.ToLower(v)
	}
	if v := os.Getenv("CHAT_TOKEN_PATH"); v != "" {
		c.Token.Path = v
	}
	if v := os.Getenv("CHAT_REDIS_ADDR"); v != "" {
		c.Token.RedisAddr = v
	}
	if v := os.Getenv("CHAT_REDIS_PREFIX"); v != "" {
		c.Token.RedisPrefix = v
	}
	if v := os.Getenv("CHAT_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("CHAT_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("CHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("CHAT_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Session.HeartbeatInterval = d
		}
	}
	if v := os.Getenv("CHAT_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Session.ReconnectDelay = d
		}
	}
	if v := os.Getenv("CHAT_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Transport.WriteTimeout = d
		}
	}
	if v := os.Getenv("CHAT_SCROLLBACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.UI.Scrollback = n
		}
	}
	if v := os.Getenv("CHAT_BELL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UI.Bell = b
		}
	}
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("config: server_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: server_url must be an http(s) URL, got %q", c.ServerURL)
	}

	switch c.Token.Store {
	case StoreMemory:
	case StorePebble:
		if c.Token.Path == "" {
			return errors.New("config: token.path is required for the pebble store")
		}
	case StoreRedis:
		if c.Token.RedisAddr == "" {
			return errors.New("config: token.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown token store %q", c.Token.Store)
	}

	if c.Session.HeartbeatInterval <= 0 || c.Session.ReconnectDelay <= 0 ||
		c.Session.TypingIdle <= 0 || c.Session.RemoteTypingTimeout <= 0 {
		return errors.New("config: session durations must be positive")
	}
	return nil
}
