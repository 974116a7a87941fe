package archive

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WriterConfig configures an ArchiveWriter.
type WriterConfig struct {
	// FilePath is the archive file. Parent directories are created.
	FilePath string

	// BufferSize is the write buffer size in bytes. Zero means the
	// bufio default.
	BufferSize int

	// FsyncInterval batches fsyncs. Zero syncs after every append.
	FsyncInterval time.Duration
}

// ArchiveWriter appends entries to an archive file. It is safe for
// concurrent use.
type ArchiveWriter struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     WriterConfig
	mutex      sync.Mutex
	offset     int64
}

// NewArchiveWriter opens the archive file for appending, creating it and
// its directory if needed.
func NewArchiveWriter(config WriterConfig) (*ArchiveWriter, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &ArchiveWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		offset: stat.Size(),
	}

	if config.FsyncInterval > 0 {
		w.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			w.sync() // Ignore error in timer callback
		})
	}

	return w, nil
}

// Append writes one entry and returns the file offset it starts at.
func (w *ArchiveWriter) Append(entry *Entry) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	data, err := marshalEntry(entry)
	if err != nil {
		return 0, err
	}

	n, err := w.writer.Write(data)
	if err != nil {
		return 0, err
	}

	entryOffset := w.offset
	w.offset += int64(n)

	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	return entryOffset, nil
}

// Sync flushes buffered entries and fsyncs the file.
func (w *ArchiveWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *ArchiveWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close syncs outstanding entries and closes the file.
func (w *ArchiveWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}

// Size returns the current archive size in bytes.
func (w *ArchiveWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the archive file path.
func (w *ArchiveWriter) Path() string {
	return w.config.FilePath
}
