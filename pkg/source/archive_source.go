package source

import (
	"context"
	"io"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/atleaf/atleaf/pkg/archive"
)

// ArchiveSource reads leaves from a local archive file.
type ArchiveSource struct {
	path string
}

// NewArchiveSource creates a source over an archive file.
func NewArchiveSource(path string) *ArchiveSource {
	return &ArchiveSource{path: path}
}

// Leaves scans the archive and returns entries in range. Archive order
// is append order, so entries are re-sorted only if the archive itself
// was written out of index order.
func (s *ArchiveSource) Leaves(ctx context.Context, from, to uint64) ([]Leaf, error) {
	reader, err := archive.NewArchiveReader(archive.ReaderConfig{FilePath: s.path})
	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %s", s.path)
	}
	defer reader.Close()

	leaves := []Leaf{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := reader.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrapf(err, "reading archive %s", s.path)
		}

		if entry.Index < from || entry.Index > to {
			continue
		}
		leaves = append(leaves, Leaf{Index: entry.Index, Leaf: entry.Leaf, Raw: entry.Raw})
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Index < leaves[j].Index })

	return leaves, nil
}
