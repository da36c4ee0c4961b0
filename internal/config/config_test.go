package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadViewer_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadViewer("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9550", cfg.Listen)
	assert.Equal(t, ":9551", cfg.HTTPListen)
	assert.True(t, cfg.EnableSwagger)
	assert.Equal(t, "sysinfo.db", cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.PurgeInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "sysinfo-viewer", cfg.Tracing.ServiceName)
}

func TestLoadViewer_FileEnvFlags(t *testing.T) {
	path := writeConfig(t, `
listen: ":7000"
database: /var/lib/sysinfo/db.sqlite
retention_days: 30
purge_interval: 6h
api_secret: from-file
log:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: stdout
`)
	t.Setenv("SYSINFO_VIEWER_API_SECRET", "from-env")
	t.Setenv("SYSINFO_VIEWER_LOG_FORMAT", "console")

	flags := pflag.NewFlagSet("viewer", pflag.ContinueOnError)
	flags.String("listen", "", "")
	flags.String("database", "", "")
	require.NoError(t, flags.Parse([]string{"--listen", ":8000"}))

	cfg, err := LoadViewer(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Listen)
	assert.Equal(t, "/var/lib/sysinfo/db.sqlite", cfg.DatabasePath)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 6*time.Hour, cfg.PurgeInterval)
	assert.Equal(t, "from-env", cfg.ApiSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
}

func TestLoadViewer_Invalid(t *testing.T) {
	path := writeConfig(t, "retention_days: -1\n")
	_, err := LoadViewer(path, nil)
	assert.ErrorContains(t, err, "invalid config")

	path = writeConfig(t, "tracing:\n  exporter: zipkin\n")
	_, err = LoadViewer(path, nil)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadViewer_MissingExplicitFile(t *testing.T) {
	_, err := LoadViewer(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "read config")
}

func TestLoadAgent(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SYSINFO_AGENT_CLIENT_SECRET", "s3cret")

	flags := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	flags.Int("concurrency", 0, "")
	flags.String("collector", "", "")
	require.NoError(t, flags.Parse([]string{"--concurrency", "3"}))

	cfg, err := LoadAgent("", flags)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9550", cfg.CollectorAddr)
	assert.Equal(t, "s3cret", cfg.ClientSecret)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "sysinfo-agent", cfg.Tracing.ServiceName)
}

func TestLoadAgent_Invalid(t *testing.T) {
	path := writeConfig(t, "collector: \"\"\nconcurrency: -2\n")
	_, err := LoadAgent(path, nil)
	assert.ErrorContains(t, err, "invalid config")
}
