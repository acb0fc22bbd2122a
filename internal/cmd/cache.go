package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/cloudpane/bucketcache/internal/config"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the durable bucket cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and cached scopes",
	RunE:  runCacheInfo,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	store, err := cachestore.OpenFileStore(cfg.Cache.Path())
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Opening bucket cache failed", err)
	}

	keys, err := store.Keys()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Reading bucket cache failed", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache file: %s\n", store.Path())
	if len(keys) == 0 {
		fmt.Fprintln(out, "No cached scopes.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tSTATE\tBUCKETS\tUPDATED")
	for _, key := range keys {
		entry, _, err := store.Get(key)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Reading bucket cache failed", err)
		}
		updated := ""
		if !entry.UpdatedAt.IsZero() {
			updated = entry.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", key, entry.State, len(entry.Buckets), updated)
	}
	return w.Flush()
}
