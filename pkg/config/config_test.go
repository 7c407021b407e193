package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xkonsti/chatd/internal/bytesize"
)

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, 42428, cfg.Server.Port)
	assert.Equal(t, "queue", cfg.Server.AcceptPolicy)
	assert.Equal(t, 1024, cfg.Server.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 32, cfg.Dispatcher.Workers)
	assert.Equal(t, 256, cfg.Dispatcher.QueueDepth)
	assert.Equal(t, bytesize.MiB, cfg.Protocol.MaxFrameSize)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Shutdown)

	require.NoError(t, Validate(cfg))
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 5555
	cfg.Server.AcceptPolicy = "reject"
	cfg.Logging.Level = "debug"
	cfg.Dispatcher.Workers = 2

	ApplyDefaults(cfg)

	assert.Equal(t, 5555, cfg.Server.Port)
	assert.Equal(t, "reject", cfg.Server.AcceptPolicy)
	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level should be normalized to uppercase")
	assert.Equal(t, 2, cfg.Dispatcher.Workers)
	assert.Equal(t, 256, cfg.Dispatcher.QueueDepth, "unset fields still get defaults")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid log level", func(c *Config) { c.Logging.Level = "TRACE" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"invalid accept policy", func(c *Config) { c.Server.AcceptPolicy = "drop" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero shutdown timeout", func(c *Config) { c.Timeouts.Shutdown = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte(`
logging:
  level: debug
server:
  port: 14242
  max_connections: 8
  accept_policy: reject
timeouts:
  read: 45s
  shutdown: 10s
dispatcher:
  workers: 4
  queue_depth: 16
protocol:
  max_frame_size: 512Ki
admin:
  users:
    - root
    - ops
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 14242, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Server.MaxConnections)
	assert.Equal(t, "reject", cfg.Server.AcceptPolicy)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Read)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Shutdown)
	assert.Equal(t, 4, cfg.Dispatcher.Workers)
	assert.Equal(t, []string{"root", "ops"}, cfg.Admin.Users)

	assert.Equal(t, 512*bytesize.KiB, cfg.Protocol.MaxFrameSize)

	// Untouched sections still get defaults
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 42428, cfg.Server.Port)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	orig := GetDefaultConfig()
	orig.Server.Port = 24242
	orig.Admin.Users = []string{"root"}
	require.NoError(t, SaveConfig(orig, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24242, loaded.Server.Port)
	assert.Equal(t, []string{"root"}, loaded.Admin.Users)
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1111\n"), 0600))

	t.Setenv("CHATD_SERVER_PORT", "2222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Server.Port)
}
