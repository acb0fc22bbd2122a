package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/cloudpane/bucketcache/internal/config"
	"github.com/cloudpane/bucketcache/pkg/bucket"
	"github.com/cloudpane/bucketcache/pkg/bucketcache"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Work with the cached bucket list",
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
}

// cliScope builds the platform scope from loaded config.
func cliScope() (bucket.Scope, error) {
	cfg := config.GetConfig()
	scope := bucket.Scope{
		Endpoint: cfg.Platform.Endpoint,
		Org:      cfg.Platform.Org,
		Token:    cfg.Platform.Token,
	}
	if err := scope.Validate(); err != nil {
		return bucket.Scope{}, exitError(foundry.ExitInvalidArgument, "Invalid platform scope", err)
	}
	return scope, nil
}

// cliProvider builds the cache provider for one-shot CLI commands.
// The caller owns Close.
func cliProvider() (*bucketcache.Provider, *cachestore.FileStore, error) {
	return buildProvider(config.GetConfig())
}
