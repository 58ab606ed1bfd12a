package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the precache worker.
type Config struct {
	CacheName  string   `env:"PRECACHE_CACHE_NAME" envDefault:"iAttend-v1"`
	Assets     []string `env:"PRECACHE_ASSETS" envDefault:"/static/css/app.css,/static/icons/icon-192x192.png" envSeparator:","`
	Origin     string   `env:"PRECACHE_ORIGIN" envDefault:"http://localhost:8000"`
	RedisURL   string   `env:"PRECACHE_REDIS_URL"`
	ListenAddr string   `env:"PRECACHE_LISTEN_ADDR" envDefault:":8090"`
	LogLevel   string   `env:"PRECACHE_LOG_LEVEL" envDefault:"info"`
	UserAgent  string   `env:"PRECACHE_USER_AGENT" envDefault:"iAttendPrecache/1.0"`

	DialTimeout         time.Duration `env:"PRECACHE_DIAL_TIMEOUT" envDefault:"5s"`
	TransportTimeout    time.Duration `env:"PRECACHE_TRANSPORT_TIMEOUT" envDefault:"30s"`
	IdleConnTimeout     time.Duration `env:"PRECACHE_IDLE_CONN_TIMEOUT" envDefault:"90s"`
	MaxIdleConns        int           `env:"PRECACHE_MAX_IDLE_CONNS" envDefault:"64"`
	MaxIdleConnsPerHost int           `env:"PRECACHE_MAX_IDLE_CONNS_PER_HOST" envDefault:"16"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.CacheName = strings.TrimSpace(cfg.CacheName)
	cfg.Origin = strings.TrimSpace(cfg.Origin)
	cfg.Assets = normalizeAssets(cfg.Assets)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.CacheName == "" {
		return fmt.Errorf("PRECACHE_CACHE_NAME must not be empty")
	}
	if c.Origin == "" {
		return fmt.Errorf("PRECACHE_ORIGIN must not be empty")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DialTimeout < 0 || c.TransportTimeout < 0 || c.IdleConnTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("idle connection limits must not be negative")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level, falling back to info.
func (c Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", raw)
	}
}

func normalizeAssets(raw []string) []string {
	assets := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			assets = append(assets, v)
		}
	}
	return assets
}
