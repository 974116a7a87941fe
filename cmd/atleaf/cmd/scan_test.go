package cmd

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/atleaf/atleaf/pkg/archive"
	"github.com/atleaf/atleaf/pkg/cache"
	"github.com/atleaf/atleaf/pkg/codec"
	"github.com/atleaf/atleaf/pkg/release"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeTestLeaf builds an encoded release-type record for scan tests.
func encodeTestLeaf(t *testing.T, description string) []byte {
	t.Helper()

	rec := codec.NewRecord(release.DataTypeRelease, []byte(description), nil,
		time.Date(2032, 1, 1, 0, 0, 0, 0, time.UTC))

	encoded, err := codec.NewRecordCodec().Encode(rec)
	require.NoError(t, err)
	return encoded
}

func TestCollectLeaves_ArchiveFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_scan_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "leaves.archive")
	writer, err := archive.NewArchiveWriter(archive.WriterConfig{FilePath: archivePath})
	require.NoError(t, err)
	for index := uint64(1); index <= 3; index++ {
		_, err := writer.Append(&archive.Entry{
			Index: index,
			Leaf:  encodeTestLeaf(t, "build "+strconv.FormatUint(index, 10)),
		})
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	leaves, err := collectLeaves(context.Background(), archivePath, "", 2, 3)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, uint64(2), leaves[0].Index)
	assert.Equal(t, uint64(3), leaves[1].Index)
}

func TestCollectLeaves_DumpDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_scan_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "7.leaf"), encodeTestLeaf(t, "build 7"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "7.raw"), []byte("raw-7"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "8.leaf"), encodeTestLeaf(t, "build 8"), 0600))

	leaves, err := collectLeaves(context.Background(), tmpDir, "", 0, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, uint64(7), leaves[0].Index)
	assert.Equal(t, []byte("raw-7"), leaves[0].Raw)
	assert.Equal(t, uint64(8), leaves[1].Index)
	assert.Empty(t, leaves[1].Raw)
}

func TestCollectLeaves_CacheFallback(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_scan_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	leafCache, err := cache.Open(cachePath(tmpDir))
	require.NoError(t, err)
	for index := uint64(100); index <= 102; index++ {
		require.NoError(t, leafCache.Put(&cache.CachedLeaf{
			Index: index,
			Leaf:  encodeTestLeaf(t, "build "+strconv.FormatUint(index, 10)),
		}))
	}
	require.NoError(t, leafCache.Close())

	leaves, err := collectLeaves(context.Background(), "", tmpDir, 100, 101)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, uint64(100), leaves[0].Index)
	assert.Equal(t, uint64(101), leaves[1].Index)
}

func TestCollectLeaves_MissingPath(t *testing.T) {
	_, err := collectLeaves(context.Background(), "/no/such/path", "", 0, math.MaxUint64)
	assert.Error(t, err)
}

func TestScanPipeline(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_scan_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "leaves.archive")
	writer, err := archive.NewArchiveWriter(archive.WriterConfig{FilePath: archivePath})
	require.NoError(t, err)
	_, err = writer.Append(&archive.Entry{Index: 1, Leaf: encodeTestLeaf(t, "macOS build 24F74")})
	require.NoError(t, err)
	_, err = writer.Append(&archive.Entry{Index: 2, Leaf: []byte{0x01, 0x02}}) // truncated
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	leaves, err := collectLeaves(context.Background(), archivePath, "", 0, math.MaxUint64)
	require.NoError(t, err)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	scanner := release.NewScanner(release.ScannerConfig{
		Types:  []uint8{release.DataTypeRelease},
		Logger: quiet,
	})
	releases := scanner.Scan(leaves)
	stats := scanner.Stats()

	require.Len(t, releases, 1)
	assert.Equal(t, "macOS build 24F74", releases[0].Description)
	assert.Equal(t, 1, stats.Decoded)
	assert.Equal(t, 1, stats.Failed)

	outDir := filepath.Join(tmpDir, "releases")
	require.NoError(t, releases[0].Dump(outDir))
	assert.FileExists(t, filepath.Join(outDir, "1", "leaf.json"))
}
