// Package archive stores fetched transparency-log leaves in an
// append-only file so later runs can re-examine them without touching
// the network.
//
// Each entry carries the leaf's log index, the leaf record bytes, and
// the raw attestation body the leaf's hash refers to, framed with a
// CRC32 so a torn write at the tail is detected and trimmed on the next
// open.
package archive

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
)

// Entry layout on disk, all integers big-endian:
//
//	[CRC32(4)][Index(8)][LeafSize(4)][RawSize(4)][Leaf][Raw]
//
// The CRC32 (IEEE) covers every byte after the checksum field.
const entryHeaderSize = 20

// MaxEntrySize bounds Leaf plus Raw for a single entry. A header whose
// sizes exceed this is treated as corruption rather than honored with a
// giant allocation.
const MaxEntrySize = 64 << 20

// ErrCorruptEntry indicates an entry whose checksum does not match or
// whose declared sizes run past the end of the file.
var ErrCorruptEntry = errors.New("archive: corrupt entry")

// Entry is one archived leaf: the record bytes as served by the log and
// the raw attestation body they attest to.
type Entry struct {
	Index uint64
	Leaf  []byte
	Raw   []byte
}

// Size returns the on-disk size of the entry including framing.
func (e *Entry) Size() int {
	return entryHeaderSize + len(e.Leaf) + len(e.Raw)
}

// marshalEntry frames an entry with its checksum.
func marshalEntry(e *Entry) ([]byte, error) {
	if len(e.Leaf)+len(e.Raw) > MaxEntrySize {
		return nil, errors.Newf("archive: entry %d is %d bytes, limit %d", e.Index, len(e.Leaf)+len(e.Raw), MaxEntrySize)
	}

	buf := make([]byte, e.Size())
	binary.BigEndian.PutUint64(buf[4:], e.Index)
	binary.BigEndian.PutUint32(buf[12:], uint32(len(e.Leaf)))
	binary.BigEndian.PutUint32(buf[16:], uint32(len(e.Raw)))
	copy(buf[entryHeaderSize:], e.Leaf)
	copy(buf[entryHeaderSize+len(e.Leaf):], e.Raw)

	binary.BigEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))

	return buf, nil
}
