package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudpane/bucketcache/internal/observability"
)

var bucketsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refetch the bucket list for the configured scope",
	RunE:  runBucketsRefresh,
}

func init() {
	bucketsCmd.AddCommand(bucketsRefreshCmd)
}

func runBucketsRefresh(cmd *cobra.Command, args []string) error {
	scope, err := cliScope()
	if err != nil {
		return err
	}

	provider, store, err := cliProvider()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	opID := uuid.New().String()
	observability.CLILogger.Info("Refreshing bucket cache",
		zap.String("op_id", opID),
		zap.String("org", scope.Org))

	if err := provider.Refresh(cmd.Context(), scope); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Refreshing buckets failed", err)
	}

	entry, err := provider.Snapshot(scope)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Reading bucket cache failed", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d buckets (cache: %s)\n",
		len(entry.Buckets), store.Path())
	return nil
}
