package commands

import (
	"fmt"

	"github.com/0xkonsti/chatd/internal/logger"
	"github.com/0xkonsti/chatd/pkg/config"
	"github.com/0xkonsti/chatd/pkg/user"
	"github.com/0xkonsti/chatd/pkg/user/badger"
	"github.com/0xkonsti/chatd/pkg/user/memory"
)

// initLogger initializes the structured logger from configuration.
func initLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openUserStore opens the configured user store: BadgerDB when a database
// path is set, in-memory otherwise.
func openUserStore(cfg *config.Config) (user.Store, error) {
	if cfg.Database.Path == "" {
		return memory.New(), nil
	}

	store, err := badger.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database at %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}

// getConfigSource returns a description of where the config was loaded
// from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
