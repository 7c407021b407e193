package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xkonsti/chatd/internal/bytesize"
)

// DefaultPort is the TCP port chatd listens on. Fixed by the deployment
// contract: containers expose 42428.
const DefaultPort = 42428

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyTimeoutsDefaults(&cfg.Timeouts)
	applyDispatcherDefaults(&cfg.Dispatcher)
	applyProtocolDefaults(&cfg.Protocol)
	applyAPIDefaults(&cfg.API)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1024
	}
	if cfg.AcceptPolicy == "" {
		cfg.AcceptPolicy = "queue"
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
}

func applyTimeoutsDefaults(cfg *TimeoutsConfig) {
	if cfg.Read == 0 {
		cfg.Read = 5 * time.Minute
	}
	if cfg.Write == 0 {
		cfg.Write = 30 * time.Second
	}
	if cfg.Idle == 0 {
		cfg.Idle = 5 * time.Minute
	}
	if cfg.Shutdown == 0 {
		cfg.Shutdown = 30 * time.Second
	}
}

func applyDispatcherDefaults(cfg *DispatcherConfig) {
	if cfg.Workers <= 0 {
		cfg.Workers = 32
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
}

func applyProtocolDefaults(cfg *ProtocolConfig) {
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = bytesize.MiB
	}
	if cfg.MaxFields <= 0 {
		cfg.MaxFields = 64
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port <= 0 {
		cfg.Port = 9090
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// getConfigDir returns the default configuration directory,
// $XDG_CONFIG_HOME/chatd or ~/.config/chatd.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chatd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "chatd")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
