// Package source retrieves raw leaves for ranges of log indexes.
//
// A Source hands back the bytes exactly as the log (or a local copy of
// it) serves them; decoding and verification happen in the layers above.
// Three implementations cover the usual setups: a directory of dumped
// files, a local archive, and a log node reached over HTTP.
package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Leaf is one fetched log position: the encoded leaf record and, when
// the log serves it, the raw attestation body the record's hash covers.
type Leaf struct {
	Index uint64
	Leaf  []byte
	Raw   []byte
}

// Source fetches the leaves with from <= index <= to, ascending.
// Positions the backend has no data for are simply absent from the
// result, not errors.
type Source interface {
	Leaves(ctx context.Context, from, to uint64) ([]Leaf, error)
}

// leafFileSuffix and rawFileSuffix name the per-index files a FileSource
// reads and a dump writes.
const (
	leafFileSuffix = ".leaf"
	rawFileSuffix  = ".raw"
)

// FileSource reads leaves from a directory of <index>.leaf files with
// optional <index>.raw companions, the layout produced by dumping.
type FileSource struct {
	dir string
}

// NewFileSource creates a source over a dump directory.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Leaves scans the directory for indexes in range.
func (s *FileSource) Leaves(ctx context.Context, from, to uint64) ([]Leaf, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading leaf directory %s", s.dir)
	}

	leaves := []Leaf{}
	for _, dirEntry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), leafFileSuffix) {
			continue
		}

		index, err := strconv.ParseUint(strings.TrimSuffix(dirEntry.Name(), leafFileSuffix), 10, 64)
		if err != nil {
			// Not an index-named file, leave it alone.
			continue
		}
		if index < from || index > to {
			continue
		}

		leaf, err := os.ReadFile(filepath.Join(s.dir, dirEntry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading leaf %d", index)
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, strconv.FormatUint(index, 10)+rawFileSuffix))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "reading raw body %d", index)
			}
			raw = nil
		}

		leaves = append(leaves, Leaf{Index: index, Leaf: leaf, Raw: raw})
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Index < leaves[j].Index })

	return leaves, nil
}
