// Package config loads and validates the chatd server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/0xkonsti/chatd/internal/bytesize"
)

// Config represents the chatd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CHATD_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server controls the TCP listener and connection admission
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Timeouts groups all connection timeout configuration
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// Dispatcher controls the worker pool that executes requests
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher"`

	// Protocol bounds what the wire decoder will accept
	Protocol ProtocolConfig `mapstructure:"protocol" yaml:"protocol"`

	// Database configures the user store persistence
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// API configures the HTTP status/metrics listener
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Admin configures operator privileges
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig controls the TCP listener and connection admission.
type ServerConfig struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port to listen on. Default: 42428.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// MaxConnections limits concurrent client connections.
	// 0 means unlimited (not recommended for production).
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// AcceptPolicy selects what happens when MaxConnections is reached:
	//   "queue"  - hold further connections in the kernel accept backlog
	//              until a slot frees (default)
	//   "reject" - accept and immediately close over-limit connections
	AcceptPolicy string `mapstructure:"accept_policy" validate:"omitempty,oneof=queue reject" yaml:"accept_policy"`

	// HeartbeatInterval is how often the server emits a heartbeat to each
	// session. 0 disables server heartbeats.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"min=0" yaml:"heartbeat_interval"`
}

// TimeoutsConfig groups all timeout-related configuration.
type TimeoutsConfig struct {
	// Read is the maximum duration to wait for bytes from a peer.
	// 0 means no timeout (not recommended).
	Read time.Duration `mapstructure:"read" validate:"min=0" yaml:"read"`

	// Write is the maximum duration for writing a frame to a peer.
	Write time.Duration `mapstructure:"write" validate:"min=0" yaml:"write"`

	// Idle closes sessions with no read or write activity in the window.
	// This is the primary defense against abandoned peers.
	Idle time.Duration `mapstructure:"idle" validate:"min=0" yaml:"idle"`

	// Shutdown is the grace period for draining active sessions during
	// graceful shutdown. Must be > 0 so shutdown always completes.
	Shutdown time.Duration `mapstructure:"shutdown" validate:"required,gt=0" yaml:"shutdown"`
}

// DispatcherConfig controls the bounded worker pool.
type DispatcherConfig struct {
	// Workers is the number of concurrent request executors.
	Workers int `mapstructure:"workers" validate:"min=0" yaml:"workers"`

	// QueueDepth bounds pending submissions when all workers are busy.
	// When the queue is full, submissions fail fast with backpressure.
	QueueDepth int `mapstructure:"queue_depth" validate:"min=0" yaml:"queue_depth"`
}

// ProtocolConfig bounds the wire decoder.
type ProtocolConfig struct {
	// MaxFrameSize is the maximum encoded frame size. Accepts plain byte
	// counts or human-readable sizes like "1Mi" or "512KB".
	MaxFrameSize bytesize.ByteSize `mapstructure:"max_frame_size" yaml:"max_frame_size"`

	// MaxFields is the maximum number of payload fields per frame.
	MaxFields int `mapstructure:"max_fields" validate:"min=0" yaml:"max_fields"`
}

// DatabaseConfig configures user store persistence.
type DatabaseConfig struct {
	// Path is the BadgerDB directory for the user store.
	// Empty uses an in-memory store (users are lost on restart).
	Path string `mapstructure:"path" yaml:"path"`
}

// APIConfig configures the HTTP status and metrics listener.
type APIConfig struct {
	// Enabled controls whether the HTTP listener starts.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP listen port. Default: 9090.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// ReadTimeout bounds request header+body reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0" yaml:"read_timeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0" yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0" yaml:"idle_timeout"`
}

// AdminConfig configures operator privileges.
type AdminConfig struct {
	// Users lists usernames allowed to issue a remote server shutdown.
	Users []string `mapstructure:"users" yaml:"users"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			// No file anywhere: run entirely on defaults. chatd is
			// expected to start with zero configuration in containers.
			return GetDefaultConfig(), nil
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  chatd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if cfg.Dispatcher.Workers > 0 && cfg.Dispatcher.QueueDepth == 0 {
		return fmt.Errorf("dispatcher.queue_depth must be > 0 when workers are configured")
	}

	return nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the config file may name admin users and a database path.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the CHATD_ prefix with underscores.
	// Example: CHATD_LOGGING_LEVEL=DEBUG, CHATD_SERVER_PORT=42428
	v.SetEnvPrefix("CHATD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
