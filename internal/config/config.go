package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:""`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	MediaDir       string `envconfig:"MEDIA_DIR" default:"./data/media"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	// Shared key required by POST /auth/session. Empty leaves it open.
	AccessKey string `envconfig:"ACCESS_KEY" default:""`

	// Canvas engine
	HistoryLimit   int     `envconfig:"HISTORY_LIMIT" default:"50"`
	ViewportWidth  float64 `envconfig:"VIEWPORT_WIDTH" default:"1920"`
	ViewportHeight float64 `envconfig:"VIEWPORT_HEIGHT" default:"1080"`

	// Node actions
	ActionConcurrency int           `envconfig:"ACTION_CONCURRENCY" default:"4"`
	ActionTimeout     time.Duration `envconfig:"ACTION_TIMEOUT" default:"10m"`

	// Autosave period for live rooms. Zero disables it; rooms still save when
	// the last client leaves.
	SaveInterval time.Duration `envconfig:"SAVE_INTERVAL" default:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
