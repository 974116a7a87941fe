package archive

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// ReaderConfig configures an ArchiveReader.
type ReaderConfig struct {
	// FilePath is the archive file to read.
	FilePath string

	// StartOffset is the byte offset to begin reading from. It must sit
	// on an entry boundary.
	StartOffset int64
}

// ArchiveReader reads entries sequentially from an archive file.
type ArchiveReader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
}

// NewArchiveReader opens an archive for sequential reading.
func NewArchiveReader(config ReaderConfig) (*ArchiveReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	return &ArchiveReader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: config.StartOffset,
	}, nil
}

// ReadNext reads the entry at the current offset. It returns io.EOF at a
// clean end of the archive and ErrCorruptEntry when the file ends inside
// an entry or the checksum does not match.
func (r *ArchiveReader) ReadNext() (*Entry, error) {
	header := make([]byte, entryHeaderSize)
	if _, err := io.ReadFull(r.reader, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrapf(ErrCorruptEntry, "header cut short at offset %d", r.offset)
		}
		return nil, err
	}

	checksum := binary.BigEndian.Uint32(header[0:4])
	index := binary.BigEndian.Uint64(header[4:12])
	leafSize := binary.BigEndian.Uint32(header[12:16])
	rawSize := binary.BigEndian.Uint32(header[16:20])

	total := int64(leafSize) + int64(rawSize)
	if total > MaxEntrySize {
		return nil, errors.Wrapf(ErrCorruptEntry, "entry at offset %d declares %d bytes, limit %d", r.offset, total, MaxEntrySize)
	}

	payload := make([]byte, total)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrapf(ErrCorruptEntry, "payload cut short at offset %d", r.offset)
		}
		return nil, err
	}

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(payload)
	if crc.Sum32() != checksum {
		return nil, errors.Wrapf(ErrCorruptEntry, "checksum mismatch at offset %d", r.offset)
	}

	r.offset += entryHeaderSize + total

	return &Entry{
		Index: index,
		Leaf:  payload[:leafSize:leafSize],
		Raw:   payload[leafSize:],
	}, nil
}

// Offset returns the byte offset of the next unread entry.
func (r *ArchiveReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining entries.
func (r *ArchiveReader) Iterator() *EntryIterator {
	return &EntryIterator{reader: r}
}

// Close closes the archive file.
func (r *ArchiveReader) Close() error {
	return r.file.Close()
}

// EntryIterator streams entries from an ArchiveReader. After Next
// returns false, Err distinguishes a clean end from corruption.
type EntryIterator struct {
	reader *ArchiveReader
	entry  *Entry
	err    error
}

// Next advances to the next entry.
func (it *EntryIterator) Next() bool {
	it.entry, it.err = it.reader.ReadNext()
	return it.err == nil
}

// Entry returns the current entry.
func (it *EntryIterator) Entry() *Entry {
	return it.entry
}

// Err returns the error that stopped iteration, or nil if the archive
// ended cleanly.
func (it *EntryIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

// Close releases nothing itself; the underlying reader stays owned by
// the caller.
func (it *EntryIterator) Close() error {
	return nil
}
