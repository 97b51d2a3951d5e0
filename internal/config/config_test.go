package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/value"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Endpoint)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.False(t, cfg.Strict)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
workers:     4
log_level:   "debug"
endpoint:    "file:///var/lib/emdb/data.db"
listen_addr: "127.0.0.1:9000"
strict:      true
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Workers:    4,
		LogLevel:   slog.LevelDebug,
		Endpoint:   "file:///var/lib/emdb/data.db",
		ListenAddr: "127.0.0.1:9000",
		Strict:     true,
	}, cfg)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`workers: 2`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "memory", cfg.Endpoint)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"negative workers", `workers: -1`},
		{"unknown level", `log_level: "trace"`},
		{"bad endpoint", `endpoint: "ftp://x"`},
		{"unknown field", `threads: 3`},
		{"wrong type", `strict: "yes"`},
		{"syntax", `workers: `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emdb.cue")
	require.NoError(t, os.WriteFile(path, []byte(`workers: 2
endpoint: "memory"`), 0o644))

	t.Setenv(envWorkers, "8")
	t.Setenv(envEndpoint, "sqlite:///tmp/x.db")
	t.Setenv(envLogLevel, "warn")
	t.Setenv(envListenAddr, ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "sqlite:///tmp/x.db", cfg.Endpoint)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.ListenAddr)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv(envWorkers, "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "EMDB_WORKERS")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.ErrorContains(t, err, "read config")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

func TestConnectOptions(t *testing.T) {
	cfg := Default()
	cfg.Strict = true
	assert.Equal(t, value.Object{"strict": value.Bool(true)}, cfg.ConnectOptions())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", "engine_id", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"engine_id":3`)
}
