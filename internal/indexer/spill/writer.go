// Package spill buffers serialized postings in memory and writes each full
// buffer to a numbered run file.
package spill

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
)

// RunPath names the n-th run file (1-based) in dir.
func RunPath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("postings-%06d.run", n))
}

// Writer owns the in-memory posting buffer. Before a posting would push the
// buffer past its capacity the buffer is written out as the next run file.
type Writer struct {
	dir      string
	capacity int
	buf      []byte
	runs     []string
	postings int64
	bytes    int64
	logger   *slog.Logger
}

func NewWriter(dir string, capacity int) (*Writer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("spill buffer capacity must be positive, got %d", capacity)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &Writer{
		dir:      dir,
		capacity: capacity,
		buf:      make([]byte, 0, min(capacity, 1<<20)),
		logger:   slog.Default().With("component", "spill-writer"),
	}, nil
}

// Add serializes p into the buffer, flushing first if it would not fit. A
// single record larger than the capacity is written alone into its own run.
func (w *Writer) Add(p index.Posting) error {
	if len(w.buf)+index.RecordLen(p) > w.capacity {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	w.buf = index.AppendRecord(w.buf, p)
	w.postings++
	return nil
}

// Flush writes a non-empty buffer to the next run file and clears it.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	path := RunPath(w.dir, len(w.runs)+1)
	if err := os.WriteFile(path, w.buf, 0644); err != nil {
		return fmt.Errorf("writing run file %s: %w", path, err)
	}
	w.runs = append(w.runs, path)
	w.bytes += int64(len(w.buf))
	w.logger.Debug("flushed run file",
		"run", len(w.runs),
		"path", path,
		"bytes", len(w.buf),
	)
	w.buf = w.buf[:0]
	return nil
}

// Close flushes the remaining buffer and returns the run files in order.
func (w *Writer) Close() ([]string, error) {
	if err := w.Flush(); err != nil {
		return w.runs, err
	}
	return w.runs, nil
}

func (w *Writer) Runs() []string {
	return w.runs
}

func (w *Writer) Postings() int64 {
	return w.postings
}

// BytesWritten counts bytes already flushed to run files.
func (w *Writer) BytesWritten() int64 {
	return w.bytes
}

func (w *Writer) Buffered() int {
	return len(w.buf)
}
