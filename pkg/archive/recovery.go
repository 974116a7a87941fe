package archive

import (
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

// RecoveryResult reports what Recover found and changed.
type RecoveryResult struct {
	EntriesValidated int64 `json:"entries_validated"`
	EntriesTruncated int64 `json:"entries_truncated"`
	FileSizeBefore   int64 `json:"file_size_before"`
	FileSizeAfter    int64 `json:"file_size_after"`
	RecoveryTime     int64 `json:"recovery_time_ns"`
}

// Recover scans an archive from the start and truncates it at the first
// damaged entry, so a crash mid-append leaves a readable file. A missing
// file is not an error; it simply validates zero entries.
func Recover(path string) (*RecoveryResult, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{
				RecoveryTime: time.Since(startTime).Nanoseconds(),
			}, nil
		}
		return nil, err
	}

	fileSizeBefore := fileInfo.Size()

	reader, err := NewArchiveReader(ReaderConfig{FilePath: path})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var entriesValidated int64
	var lastValidOffset int64
	var corruptionFound bool

	for {
		_, err := reader.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, ErrCorruptEntry) {
				corruptionFound = true
				break
			}
			return nil, err
		}

		entriesValidated++
		lastValidOffset = reader.Offset()
	}

	fileSizeAfter := fileSizeBefore
	var entriesTruncated int64

	if corruptionFound {
		file, err := os.OpenFile(path, os.O_RDWR, 0600)
		if err != nil {
			return nil, err
		}

		if err := file.Truncate(lastValidOffset); err != nil {
			file.Close()
			return nil, err
		}

		if err := file.Close(); err != nil {
			return nil, err
		}

		fileSizeAfter = lastValidOffset
		// Entry boundaries past the corruption point are unknowable, so
		// the dropped tail counts as one entry.
		entriesTruncated = 1
	}

	return &RecoveryResult{
		EntriesValidated: entriesValidated,
		EntriesTruncated: entriesTruncated,
		FileSizeBefore:   fileSizeBefore,
		FileSizeAfter:    fileSizeAfter,
		RecoveryTime:     time.Since(startTime).Nanoseconds(),
	}, nil
}
