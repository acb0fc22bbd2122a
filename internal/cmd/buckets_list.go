package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudpane/bucketcache/pkg/bucket"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
	"github.com/cloudpane/bucketcache/pkg/match"
)

var bucketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets from the cache",
	Long: `List buckets for the configured scope. A cold cache is filled from the
platform API first; a warm cache is served as-is unless --refresh is given.`,
	RunE: runBucketsList,
}

var (
	bucketsListMatch   []string
	bucketsListExclude []string
	bucketsListOutput  string
	bucketsListRefresh bool
)

func init() {
	bucketsCmd.AddCommand(bucketsListCmd)

	bucketsListCmd.Flags().StringSliceVar(&bucketsListMatch, "match", nil, "Glob pattern(s) to include")
	bucketsListCmd.Flags().StringSliceVar(&bucketsListExclude, "exclude", nil, "Glob pattern(s) to exclude")
	bucketsListCmd.Flags().StringVarP(&bucketsListOutput, "output", "o", "table", "Output format (table, json, yaml)")
	bucketsListCmd.Flags().BoolVar(&bucketsListRefresh, "refresh", false, "Fetch from the platform API before listing")
}

func runBucketsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scope, err := cliScope()
	if err != nil {
		return err
	}

	var matcher *match.Matcher
	if len(bucketsListMatch) > 0 || len(bucketsListExclude) > 0 {
		matcher, err = match.New(match.Config{
			Includes: bucketsListMatch,
			Excludes: bucketsListExclude,
		})
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid match pattern", err)
		}
	}

	provider, _, err := cliProvider()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	if bucketsListRefresh {
		if err := provider.Refresh(ctx, scope); err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Refreshing buckets failed", err)
		}
	} else if err := provider.EnsureFetched(ctx, scope); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Fetching buckets failed", err)
	}

	entry, err := provider.Snapshot(scope)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Reading bucket cache failed", err)
	}

	buckets := entry.Buckets
	if matcher != nil {
		filtered := make([]bucket.Bucket, 0, len(buckets))
		for _, b := range buckets {
			if matcher.Match(b.Name) {
				filtered = append(filtered, b)
			}
		}
		buckets = filtered
	}

	return printBuckets(cmd, entry, buckets, bucketsListOutput)
}

func printBuckets(cmd *cobra.Command, entry cachestore.Entry, buckets []bucket.Bucket, format string) error {
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(buckets)
	case "yaml":
		return yaml.NewEncoder(out).Encode(buckets)
	case "table":
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tORG")
		for _, b := range buckets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Type, b.OrgID)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if entry.State == cachestore.StateError {
			fmt.Fprintln(out, "warning: last fetch failed; showing cached results")
		}
		return nil
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid output format",
			fmt.Errorf("unknown format %q (want table, json, or yaml)", format))
	}
}
