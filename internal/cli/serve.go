package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Davincible/shardwallet/internal/config"
	"github.com/Davincible/shardwallet/internal/metrics"
	"github.com/Davincible/shardwallet/internal/server"
	"github.com/Davincible/shardwallet/pkg/sharestore"
)

// NewLogger builds the process logger. Text output is meant for terminals.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewServerRootCommand builds the keyshare-server command tree.
func NewServerRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "keyshare-server",
		Short: "Hold the server keyshare of shardwallet wallets",
		Long: `keyshare-server stores one keyshare per wallet public key and serves it back
over HTTP at /keyshare. Health endpoints are /livez and /readyz; metrics are
served on a separate listener.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: keyshare-server.yaml)")
	rootCmd.AddCommand(NewServeCommand())
	return rootCmd
}

func NewServeCommand() *cobra.Command {
	var (
		listenAddr  string
		logLevel    string
		backendName string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the keyshare HTTP server",
		Example: `  keyshare-server serve
  keyshare-server serve --backend redis --listen-addr :9000
  KEYSHARE_STORE_BACKEND=file KEYSHARE_STORE_FILE_PASSPHRASE=... keyshare-server serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadServer(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.HTTP.ListenAddr = listenAddr
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if backendName != "" {
				cfg.Store.Backend = backendName
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.JSON).With("service", "keyshare-server")
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen-addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&backendName, "backend", "", "Store backend: memory, file, redis, s3, vault")
	return cmd
}

// runServer serves until ctx is cancelled, then drains and closes the store.
func runServer(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) error {
	backend, err := cfg.Store.Open(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	if cfg.HTTP.MetricsAddr != "" {
		metrics.Enable()
	}

	store := sharestore.New(metrics.InstrumentBackend(backend), sharestore.Options{
		SingleTenant: cfg.Store.SingleTenant,
		Log:          log,
	})
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", "err", err)
		}
	}()

	srv, err := server.New(&server.HTTPServerConfig{
		ListenAddr:               cfg.HTTP.ListenAddr,
		MetricsAddr:              cfg.HTTP.MetricsAddr,
		EnablePprof:              cfg.HTTP.EnablePprof,
		Log:                      log,
		MaxBodySize:              cfg.HTTP.MaxBodySize,
		RateLimitPerMin:          cfg.HTTP.RateLimitPerMin,
		RateLimitBurst:           cfg.HTTP.RateLimitBurst,
		RateLimitDisabled:        cfg.HTTP.RateLimitPerMin == 0,
		TrustProxyHeaders:        cfg.HTTP.TrustProxyHeaders,
		DrainDuration:            cfg.HTTP.DrainDuration,
		GracefulShutdownDuration: cfg.HTTP.ShutdownTimeout,
		ReadTimeout:              cfg.HTTP.ReadTimeout,
		WriteTimeout:             cfg.HTTP.WriteTimeout,
	}, store)
	if err != nil {
		return err
	}

	log.Info("Keyshare server starting",
		"backend", backend.Name(),
		"singleTenant", cfg.Store.SingleTenant)
	srv.RunInBackground()

	<-ctx.Done()
	log.Info("Shutting down")
	srv.Shutdown()
	return nil
}
