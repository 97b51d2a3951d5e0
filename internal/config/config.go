// Package config loads emdb settings: defaults, then an optional CUE file
// checked against an embedded schema, then environment variables.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/emdb/internal/value"
)

const (
	defaultEndpoint   = "memory"
	defaultListenAddr = ":8080"

	envWorkers    = "EMDB_WORKERS"
	envLogLevel   = "EMDB_LOG_LEVEL"
	envEndpoint   = "EMDB_ENDPOINT"
	envListenAddr = "EMDB_LISTEN_ADDR"
)

//go:embed schema.cue
var schemaSource []byte

// Config holds the runtime settings.
type Config struct {
	Workers    int
	LogLevel   slog.Level
	Endpoint   string
	ListenAddr string
	Strict     bool
}

// fileConfig mirrors #Config. Pointers tell unset fields from zero values.
type fileConfig struct {
	Workers    *int    `json:"workers,omitempty"`
	LogLevel   *string `json:"log_level,omitempty"`
	Endpoint   *string `json:"endpoint,omitempty"`
	ListenAddr *string `json:"listen_addr,omitempty"`
	Strict     *bool   `json:"strict,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:   slog.LevelInfo,
		Endpoint:   defaultEndpoint,
		ListenAddr: defaultListenAddr,
	}
}

// Load builds a Config. path names an optional CUE file; empty skips it.
// Environment variables override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.applyCUE(src, path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse applies CUE source on top of the defaults.
func Parse(src []byte) (Config, error) {
	cfg := Default()
	err := cfg.applyCUE(src, "config.cue")
	return cfg, err
}

func (c *Config) applyCUE(src []byte, filename string) error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	v := schema.Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	if fc.LogLevel != nil {
		c.LogLevel = ParseLogLevel(*fc.LogLevel)
	}
	if fc.Endpoint != nil {
		c.Endpoint = *fc.Endpoint
	}
	if fc.ListenAddr != nil {
		c.ListenAddr = *fc.ListenAddr
	}
	if fc.Strict != nil {
		c.Strict = *fc.Strict
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: expected a non-negative integer, got %q", envWorkers, v)
		}
		c.Workers = n
	}
	if v, ok := lookup(envLogLevel); ok && v != "" {
		c.LogLevel = ParseLogLevel(v)
	}
	if v, ok := lookup(envEndpoint); ok && v != "" {
		c.Endpoint = v
	}
	if v, ok := lookup(envListenAddr); ok && v != "" {
		c.ListenAddr = v
	}
	return nil
}

// ConnectOptions returns the connect options object for c.
func (c Config) ConnectOptions() value.Object {
	return value.Object{"strict": value.Bool(c.Strict)}
}

// ParseLogLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
