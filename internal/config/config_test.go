package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Default(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHORTBT_LOG_LEVEL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, backtrace.DefaultMarkers, cfg.BacktraceMarkers())
}

func TestLoad_JSON(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHORTBT_LOG_LEVEL", "")

	path := writeFile(t, "config.json", `{
		"server": {"addr": "127.0.0.1:8080", "sessionTTL": "5m"},
		"limits": {"maxFrames": 100},
		"log": {"level": "debug", "format": "json"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionTTL.Std())
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 100, cfg.Limits.MaxFrames)
	assert.Equal(t, 1<<20, cfg.Limits.MaxTraceBytes)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SHORTBT_LOG_LEVEL", "warn")

	path := writeFile(t, "config.yaml", `
server:
  idleTimeout: 1m30s
markers:
  end: runtime.gopanic
  begin: main.main
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 90*time.Second, cfg.Server.IdleTimeout.Std())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, backtrace.Markers{End: "runtime.gopanic", Begin: "main.main"}, cfg.BacktraceMarkers())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHORTBT_LOG_LEVEL", "")

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad json", "c.json", `{"server": `},
		{"bad duration", "c.json", `{"server": {"readTimeout": "soon"}}`},
		{"no markers", "c.yml", "markers:\n  end: \"\"\n  begin: \"\"\n"},
		{"negative limit", "c.json", `{"limits": {"maxFrames": -1}}`},
		{"bad level", "c.json", `{"log": {"level": "loud"}}`},
		{"bad format", "c.json", `{"log": {"format": "xml"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_OneSidedMarkers(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHORTBT_LOG_LEVEL", "")

	cfg, err := Load(writeFile(t, "c.yml", "markers:\n  begin: \"\"\n"))
	require.NoError(t, err)
	markers := cfg.BacktraceMarkers()
	assert.Equal(t, backtrace.EndShortMarker, markers.End)
	assert.Empty(t, markers.Begin)

	trace := &backtrace.Trace{Frames: []backtrace.Frame{
		{Symbols: []backtrace.Symbol{{Name: "__" + backtrace.EndShortMarker}}},
		{Symbols: []backtrace.Symbol{{Name: "app::main"}}},
		{Symbols: []backtrace.Symbol{{Name: "__" + backtrace.BeginShortMarker}}},
	}}
	b := markers.Resolve(trace)
	assert.True(t, b.StartClamped())
	assert.False(t, b.EndClamped())
	assert.Equal(t, 2, b.LastFrame)
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(PathEnv, "")
	assert.Empty(t, PathFromEnv())

	t.Setenv(PathEnv, "/etc/shortbt.yaml")
	assert.Equal(t, "/etc/shortbt.yaml", PathFromEnv())
}

func TestLogConfig_NewLogger(t *testing.T) {
	logger := LogConfig{Level: "error", Format: "json"}.NewLogger()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelError))
}
