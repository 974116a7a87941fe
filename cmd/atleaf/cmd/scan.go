/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/atleaf/atleaf/pkg/cache"
	"github.com/atleaf/atleaf/pkg/codec"
	"github.com/atleaf/atleaf/pkg/release"
	"github.com/atleaf/atleaf/pkg/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protowire"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Decode stored leaves and extract releases",
	Long: `Decode every leaf in an archive file, a dump directory, or the
local cache, verify hashes, and extract release attestations.

With a path argument, a directory is read as <index>.leaf files and a
file as an archive. Without one, the cache under the data directory is
scanned. Leaves that fail to decode are counted and skipped; the scan
continues.

Examples:
  atleaf scan
  atleaf scan leaves.archive --type 1 --out ./releases
  atleaf scan ./dump --envelope --from 5000 --to 5100`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := activeConfig(cmd)

		from, _ := cmd.Flags().GetUint64("from")
		to, _ := cmd.Flags().GetUint64("to")
		outDir, _ := cmd.Flags().GetString("out")
		unwrap, _ := cmd.Flags().GetBool("envelope")
		strictHashes, _ := cmd.Flags().GetBool("strict-hashes")

		var types []uint8
		if raw, _ := cmd.Flags().GetIntSlice("type"); len(raw) > 0 {
			converted, err := uint8List(raw)
			if err != nil {
				cmd.Printf("Error: --type: %v\n", err)
				os.Exit(1)
			}
			types = converted
		}

		field := protowire.Number(cfg.MutationField)
		if n, _ := cmd.Flags().GetInt32("mutation-field"); n > 0 {
			field = protowire.Number(n)
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		leaves, err := collectLeaves(cmd.Context(), path, cfg.DataDir, from, to)
		if err != nil {
			cmd.Printf("Error reading leaves: %v\n", err)
			os.Exit(1)
		}

		scanner := release.NewScanner(release.ScannerConfig{
			Codec: codec.NewRecordCodecWithConfig(codec.CodecConfig{
				SupportedVersions: cfg.SupportedVersions,
				StrictTrailing:    cfg.StrictTrailing,
			}),
			UnwrapEnvelope: unwrap,
			MutationField:  field,
			Types:          types,
			VerifyHashes:   cfg.VerifyHashes,
			StrictHashes:   strictHashes,
		})

		releases := scanner.Scan(leaves)
		stats := scanner.Stats()

		dumped := 0
		if outDir != "" {
			for i := range releases {
				if err := releases[i].Dump(outDir); err != nil {
					logrus.WithError(err).WithField("index", releases[i].Index).Warn("failed to dump release")
					continue
				}
				dumped++
			}
		}

		cmd.Printf("Scanned %d leaves: %d decoded, %d skipped, %d failed\n",
			len(leaves), stats.Decoded, stats.Skipped, stats.Failed)
		if stats.HashMismatches > 0 {
			cmd.Printf("⚠️  %d hash mismatches\n", stats.HashMismatches)
		}
		for i := range releases {
			cmd.Printf("  %d: %s (expires %s)\n",
				releases[i].Index, releases[i].Description, releases[i].Expiry.Format(time.RFC3339))
		}
		if outDir != "" {
			cmd.Printf("Dumped %d releases to %s\n", dumped, outDir)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Uint64("from", 0, "First log index to scan")
	scanCmd.Flags().Uint64("to", math.MaxUint64, "Last log index to scan (inclusive)")
	scanCmd.Flags().IntSlice("type", nil, "Keep only these record types (default: all)")
	scanCmd.Flags().String("out", "", "Directory to dump decoded releases into")
	scanCmd.Flags().Bool("envelope", false, "Unwrap the protobuf change-log envelope before decoding")
	scanCmd.Flags().Int32("mutation-field", 0, "Envelope field number holding the record (default from config)")
	scanCmd.Flags().Bool("strict-hashes", false, "Drop records whose raw payload fails hash verification")
}

// collectLeaves reads the leaves to scan: a directory of dumped files, an
// archive file, or the cache when path is empty.
func collectLeaves(ctx context.Context, path, dataDir string, from, to uint64) ([]source.Leaf, error) {
	if path == "" {
		return cachedLeaves(dataDir, from, to)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var src source.Source
	if info.IsDir() {
		src = source.NewFileSource(path)
	} else {
		src = source.NewArchiveSource(path)
	}
	return src.Leaves(ctx, from, to)
}

// cachedLeaves reads a range out of the leaf cache under dataDir.
func cachedLeaves(dataDir string, from, to uint64) ([]source.Leaf, error) {
	leafCache, err := cache.Open(cachePath(dataDir))
	if err != nil {
		return nil, err
	}
	defer leafCache.Close()

	leaves := []source.Leaf{}
	err = leafCache.Range(from, to, func(entry *cache.CachedLeaf) error {
		leaves = append(leaves, source.Leaf{Index: entry.Index, Leaf: entry.Leaf, Raw: entry.Raw})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return leaves, nil
}
