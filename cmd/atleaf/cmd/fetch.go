/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"path/filepath"

	"github.com/atleaf/atleaf/pkg/archive"
	"github.com/atleaf/atleaf/pkg/cache"
	"github.com/atleaf/atleaf/pkg/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw leaves into the local archive and cache",
	Long: `Fetch a range of raw leaves from the configured log node and
store them in the local archive and cache.

The leaves endpoint comes from the config file, or is discovered from
the log's bag when no endpoint is configured. Leaves are stored exactly
as served; decoding happens later with scan or serve. A leaf that fails
to store is logged and counted, and the batch continues.

Examples:
  atleaf fetch --from 0 --to 100
  atleaf fetch --from 5000 --to 5100 --endpoint https://node.example/api/v1/leaves`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := activeConfig(cmd)

		from, _ := cmd.Flags().GetUint64("from")
		to, _ := cmd.Flags().GetUint64("to")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		archivePath, _ := cmd.Flags().GetString("archive")

		if to < from {
			cmd.Printf("Error: --to %d is before --from %d\n", to, from)
			os.Exit(1)
		}

		if endpoint == "" {
			endpoint = cfg.Endpoint
		}
		if endpoint == "" {
			endpoints, err := source.DiscoverEndpoints(cmd.Context(), nil, cfg.BagURL)
			if err != nil {
				cmd.Printf("Error discovering endpoints: %v\n", err)
				os.Exit(1)
			}
			endpoint = endpoints.LogLeaves
			logrus.WithField("endpoint", endpoint).Info("discovered log-leaves endpoint")
		}

		src, err := source.NewHTTPSource(source.HTTPSourceConfig{
			Endpoint: endpoint,
			APIKey:   cfg.APIKey,
		})
		if err != nil {
			cmd.Printf("Error creating source: %v\n", err)
			os.Exit(1)
		}

		logrus.WithFields(logrus.Fields{
			"from":       from,
			"to":         to,
			"request_id": src.RequestID(),
		}).Info("fetching leaves")

		leaves, err := src.Leaves(cmd.Context(), from, to)
		if err != nil {
			cmd.Printf("Error fetching leaves: %v\n", err)
			os.Exit(1)
		}

		if archivePath == "" {
			archivePath = filepath.Join(cfg.DataDir, "leaves.archive")
		}

		stored, failed, err := storeLeaves(leaves, archivePath, cachePath(cfg.DataDir))
		if err != nil {
			cmd.Printf("Error storing leaves: %v\n", err)
			os.Exit(1)
		}

		cmd.Printf("Fetched %d leaves (indexes %d-%d)\n", len(leaves), from, to)
		cmd.Printf("Stored %d, failed %d\n", stored, failed)
		cmd.Printf("Archive: %s\n", archivePath)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().Uint64("from", 0, "First log index to fetch")
	fetchCmd.Flags().Uint64("to", 0, "Last log index to fetch (inclusive, required)")
	fetchCmd.Flags().String("endpoint", "", "Leaves endpoint URL (overrides config and bag discovery)")
	fetchCmd.Flags().String("archive", "", "Archive file path (default <data-dir>/leaves.archive)")
	if err := fetchCmd.MarkFlagRequired("to"); err != nil {
		panic(err)
	}
}

// storeLeaves appends fetched leaves to the archive and the cache.
// Failures are per leaf: a leaf that cannot be stored is logged and
// counted, and the rest of the batch still lands.
func storeLeaves(leaves []source.Leaf, archivePath, cachePath string) (stored, failed int, err error) {
	writer, err := archive.NewArchiveWriter(archive.WriterConfig{FilePath: archivePath})
	if err != nil {
		return 0, 0, err
	}
	defer writer.Close()

	leafCache, err := cache.Open(cachePath)
	if err != nil {
		return 0, 0, err
	}
	defer leafCache.Close()

	for _, leaf := range leaves {
		entry := &archive.Entry{Index: leaf.Index, Leaf: leaf.Leaf, Raw: leaf.Raw}
		if _, err := writer.Append(entry); err != nil {
			logrus.WithError(err).WithField("index", leaf.Index).Warn("failed to archive leaf")
			failed++
			continue
		}

		cached := &cache.CachedLeaf{Index: leaf.Index, Leaf: leaf.Leaf, Raw: leaf.Raw}
		if err := leafCache.Put(cached); err != nil {
			logrus.WithError(err).WithField("index", leaf.Index).Warn("failed to cache leaf")
			failed++
			continue
		}

		stored++
	}

	return stored, failed, nil
}
