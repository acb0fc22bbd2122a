package cmd

import (
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudpane/bucketcache/internal/config"
	"github.com/cloudpane/bucketcache/internal/observability"
	"github.com/cloudpane/bucketcache/internal/server"
	"github.com/cloudpane/bucketcache/pkg/bucket"
	"github.com/cloudpane/bucketcache/pkg/bucketcache"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
	"github.com/cloudpane/bucketcache/pkg/platform"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console API server",
	Long: `Serve the console API: cached bucket listings, bucket creation,
settings, and health, backed by the durable bucket cache.`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to bind (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	scope := bucket.Scope{
		Endpoint: cfg.Platform.Endpoint,
		Org:      cfg.Platform.Org,
		Token:    cfg.Platform.Token,
	}
	if err := scope.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid platform scope", err)
	}

	provider, store, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	srv := server.New(host, port, server.Options{
		Provider:          provider,
		Scope:             scope,
		SchemaComposition: cfg.Features.SchemaComposition,
		Version:           versionInfo.Version,
		Logger:            observability.CLILogger,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.CLILogger.Info("Starting server",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("cache", store.Path()))

	if err := srv.Start(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}

// buildProvider assembles the platform client, durable store, and cache
// provider from loaded config.
func buildProvider(cfg *config.Config) (*bucketcache.Provider, *cachestore.FileStore, error) {
	client, err := platform.New(platform.Config{
		Unrestricted:      cfg.Platform.Unrestricted,
		RequestsPerSecond: cfg.Platform.RequestsPerSecond,
		UserAgent:         "bucketcache/" + versionInfo.Version,
	})
	if err != nil {
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid platform configuration", err)
	}

	store, err := cachestore.OpenFileStore(cfg.Cache.Path())
	if err != nil {
		return nil, nil, exitError(foundry.ExitFileReadError, "Opening bucket cache failed", err)
	}

	provider := bucketcache.New(client, store,
		bucketcache.WithLogger(observability.CLILogger))
	return provider, store, nil
}
