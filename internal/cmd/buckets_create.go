package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/cloudpane/bucketcache/pkg/bucket"
)

var bucketsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a bucket and add it to the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runBucketsCreate,
}

func init() {
	bucketsCmd.AddCommand(bucketsCreateCmd)
}

func runBucketsCreate(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid bucket name",
			fmt.Errorf("bucket name must not be empty"))
	}

	scope, err := cliScope()
	if err != nil {
		return err
	}

	provider, _, err := cliProvider()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	created, err := provider.CreateBucket(cmd.Context(), scope, bucket.Bucket{
		Name: name,
		Type: bucket.TypeUser,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Creating bucket failed", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created bucket %s (id %s)\n", created.Name, created.ID)
	return nil
}
