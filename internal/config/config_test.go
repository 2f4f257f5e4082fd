package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 1920.0, cfg.ViewportWidth)
	assert.Equal(t, 4, cfg.ActionConcurrency)
	assert.Equal(t, 30*time.Second, cfg.SaveInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HISTORY_LIMIT", "10")
	t.Setenv("SAVE_INTERVAL", "0s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Zero(t, cfg.SaveInterval)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}

func TestLevelFallback(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}
