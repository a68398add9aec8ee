package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/gruf/go-errors/v2"
	"gopkg.in/yaml.v3"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
)

// Config represents the main configuration structure
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Limits  LimitsConfig  `json:"limits" yaml:"limits"`
	Markers MarkersConfig `json:"markers" yaml:"markers"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// ServerConfig configures the HTTP MCP server
type ServerConfig struct {
	Addr         string   `json:"addr" yaml:"addr"`
	ReadTimeout  Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout  Duration `json:"idleTimeout" yaml:"idleTimeout"`
	// Sessions idle for longer than this are dropped with their traces
	SessionTTL Duration `json:"sessionTTL" yaml:"sessionTTL"`
}

// LimitsConfig bounds the traces accepted from clients
type LimitsConfig struct {
	MaxTraceBytes int `json:"maxTraceBytes" yaml:"maxTraceBytes"`
	MaxFrames     int `json:"maxFrames" yaml:"maxFrames"`
	// Stored traces per session
	MaxTraces int `json:"maxTraces" yaml:"maxTraces"`
}

// MarkersConfig overrides the short backtrace marker substrings
type MarkersConfig struct {
	End   string `json:"end" yaml:"end"`
	Begin string `json:"begin" yaml:"begin"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // "debug", "info", "warn" or "error"
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// Duration is a time.Duration read from strings like "30s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", b)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
			SessionTTL:   Duration(30 * time.Minute),
		},
		Limits: LimitsConfig{
			MaxTraceBytes: 1 << 20,
			MaxFrames:     4096,
			MaxTraces:     64,
		},
		Markers: MarkersConfig{
			End:   backtrace.EndShortMarker,
			Begin: backtrace.BeginShortMarker,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// PathEnv names the environment variable holding the config file path.
const PathEnv = "SHORTBT_CONFIG"

// PathFromEnv returns the config path set in PathEnv, if any.
func PathFromEnv() string {
	return os.Getenv(PathEnv)
}

// Load reads and parses the configuration file. An empty path yields
// Default. Values missing from the file keep their defaults; environment
// overrides are applied last.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}

		switch strings.ToLower(filepath.Ext(configPath)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = json.Unmarshal(data, config)
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	}

	applyEnv(config)

	if err := validate(config); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return config, nil
}

// applyEnv applies PORT and SHORTBT_LOG_LEVEL
func applyEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	if level := os.Getenv("SHORTBT_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// validate checks if the configuration is valid
func validate(config *Config) error {
	if config.Server.Addr == "" {
		return errors.New("server: addr is required")
	}
	if config.Limits.MaxTraceBytes < 0 || config.Limits.MaxFrames < 0 || config.Limits.MaxTraces < 0 {
		return errors.New("limits: values must not be negative")
	}
	// One side may be left empty to disable it.
	if config.Markers.End == "" && config.Markers.Begin == "" {
		return errors.New("markers: end or begin must be set")
	}
	if _, err := config.Log.SlogLevel(); err != nil {
		return err
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return errors.Newf("log: invalid format %q (must be text or json)", config.Log.Format)
	}
	return nil
}

// BacktraceMarkers returns the configured markers
func (c *Config) BacktraceMarkers() backtrace.Markers {
	return backtrace.Markers{End: c.Markers.End, Begin: c.Markers.Begin}
}

// SlogLevel parses the configured log level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, errors.Newf("log: invalid level %q", l.Level)
	}
	return level, nil
}

// NewLogger builds a logger writing to stderr as configured
func (l LogConfig) NewLogger() *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
