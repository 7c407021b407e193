package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xkonsti/chatd/internal/logger"
	"github.com/0xkonsti/chatd/pkg/api"
	"github.com/0xkonsti/chatd/pkg/chat"
	"github.com/0xkonsti/chatd/pkg/config"
	"github.com/0xkonsti/chatd/pkg/metrics"
	prommetrics "github.com/0xkonsti/chatd/pkg/metrics/prometheus"
	"github.com/0xkonsti/chatd/pkg/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the chatd server",
	Long: `Start the chatd server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/chatd/config.yaml. Without any
configuration file the server starts on the default port with an
in-memory user store.

Examples:
  # Start with default config location
  chatd start

  # Start with custom config file
  chatd start --config /etc/chatd/config.yaml

  # Start with environment variable overrides
  CHATD_LOGGING_LEVEL=DEBUG chatd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cfgFile)
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Configuration loaded", "source", getConfigSource(cfgFile))

	store, err := openUserStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("User store close error", "error", err)
		}
	}()
	if cfg.Database.Path == "" {
		logger.Warn("No database path configured, user accounts will not persist")
	} else {
		logger.Info("User database opened", "path", cfg.Database.Path)
	}

	registry := chat.NewRegistry()
	handler := chat.NewHandler(chat.HandlerConfig{
		AdminUsers: cfg.Admin.Users,
	}, store, registry)

	srv := server.New(server.Config{
		BindAddress:       cfg.Server.BindAddress,
		Port:              cfg.Server.Port,
		MaxConnections:    cfg.Server.MaxConnections,
		AcceptPolicy:      server.AcceptPolicy(cfg.Server.AcceptPolicy),
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		ReadTimeout:       cfg.Timeouts.Read,
		WriteTimeout:      cfg.Timeouts.Write,
		IdleTimeout:       cfg.Timeouts.Idle,
		ShutdownTimeout:   cfg.Timeouts.Shutdown,
		MaxFrameSize:      int(cfg.Protocol.MaxFrameSize),
		MaxFields:         cfg.Protocol.MaxFields,
		Dispatcher: server.DispatcherConfig{
			Workers:    cfg.Dispatcher.Workers,
			QueueDepth: cfg.Dispatcher.QueueDepth,
		},
	}, handler)
	srv.OnSessionClose = func(s *server.Session) { handler.SessionClosed(s) }
	handler.SetShutdownFunc(func() { go srv.Stop() })

	// The management API also owns the metrics registry: without the HTTP
	// listener there is nothing to scrape.
	var apiServer *api.Server
	if cfg.API.Enabled {
		metrics.InitRegistry()
		if m := prommetrics.NewServerMetrics(); m != nil {
			srv.SetMetrics(m)
		}

		apiServer = api.NewServer(api.Config{
			Port:         cfg.API.Port,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  cfg.API.IdleTimeout,
		}, &statusSource{srv: srv, registry: registry})
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	apiDone := make(chan error, 1)
	if apiServer != nil {
		go func() {
			apiDone <- apiServer.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	if apiServer != nil {
		select {
		case err := <-apiDone:
			if err != nil {
				logger.Error("API server error", "error", err)
			}
		case <-time.After(10 * time.Second):
			logger.Warn("API server did not stop in time")
		}
	}

	return nil
}

// statusSource adapts the engine and presence registry to the management
// API's status view.
type statusSource struct {
	srv      *server.Server
	registry *chat.Registry
}

func (s *statusSource) State() string         { return s.srv.State().String() }
func (s *statusSource) ActiveSessions() int32 { return s.srv.ActiveSessions() }
func (s *statusSource) StartedAt() time.Time  { return s.srv.StartedAt() }
func (s *statusSource) OnlineUsers() []string { return s.registry.Online() }
