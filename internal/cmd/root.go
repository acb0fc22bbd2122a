// Package cmd implements the bucketcache CLI.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudpane/bucketcache/internal/config"
	"github.com/cloudpane/bucketcache/internal/observability"
)

// versionInfo holds build metadata injected at link time.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	rootLogLevel   string
	rootLogProfile string
	rootEndpoint   string
	rootOrg        string
	rootToken      string
)

var rootCmd = &cobra.Command{
	Use:   "bucketcache",
	Short: "Cached bucket listing for the cloud console",
	Long: `bucketcache maintains a durable, scope-keyed cache of bucket listings
fetched from the platform API, and serves them over a small HTTP API
or directly on the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if rootLogLevel != "" {
			overrides["logging.level"] = rootLogLevel
		}
		if rootLogProfile != "" {
			overrides["logging.profile"] = rootLogProfile
		}
		if rootEndpoint != "" {
			overrides["platform.endpoint"] = rootEndpoint
		}
		if rootOrg != "" {
			overrides["platform.org"] = rootOrg
		}
		if rootToken != "" {
			overrides["platform.token"] = rootToken
		}

		cfg, err := config.Load(cmd.Context(), overrides)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		observability.CLILogger.Debug("Configuration loaded",
			zap.String("endpoint", cfg.Platform.Endpoint),
			zap.String("org", cfg.Platform.Org))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bucketcache %s (commit %s, built %s)\n",
			versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootLogProfile, "log-profile", "", "Log profile (STRUCTURED or CONSOLE)")
	rootCmd.PersistentFlags().StringVar(&rootEndpoint, "endpoint", "", "Platform API endpoint")
	rootCmd.PersistentFlags().StringVar(&rootOrg, "org", "", "Organization ID")
	rootCmd.PersistentFlags().StringVar(&rootToken, "token", "", "API token")

	rootCmd.AddCommand(versionCmd)
}

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return errors.Unwrap(e.err) }

// exitError wraps err with a message and the process exit code Execute uses.
func exitError(code int, message string, err error) error {
	return &codedError{
		code: code,
		err:  fmt.Errorf("%s: %w (exit code %d)", message, err, code),
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var coded *codedError
		if errors.As(err, &coded) {
			os.Exit(coded.code)
		}
		os.Exit(1)
	}
}
