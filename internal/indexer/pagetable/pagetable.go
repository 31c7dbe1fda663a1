// Package pagetable writes the per-document table that accompanies an index:
// one record per document in ID order holding its 4-byte ID, its
// length-prefixed URL, and its 8-byte size. Integers are big-endian.
package pagetable

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// Record describes one document.
type Record struct {
	DocID uint32
	URL   string
	Size  int64
}

// Writer appends records to a page table file.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	lastID  uint32
	records int
}

func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating page table: %w", err)
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Add appends a record. Document IDs must increase.
func (w *Writer) Add(rec Record) error {
	if w.records > 0 && rec.DocID <= w.lastID {
		return fmt.Errorf("%w: page table doc %d after %d", apperrors.ErrInternal, rec.DocID, w.lastID)
	}
	url := rec.URL
	if len(url) > math.MaxUint16 {
		return fmt.Errorf("%w: url of document %d is %d bytes", apperrors.ErrInvalidInput, rec.DocID, len(url))
	}
	var buf [4 + 2]byte
	binary.BigEndian.PutUint32(buf[0:4], rec.DocID)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(url)))
	if _, err := w.w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing page table record: %w", err)
	}
	if _, err := w.w.WriteString(url); err != nil {
		return fmt.Errorf("writing page table url: %w", err)
	}
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(rec.Size))
	if _, err := w.w.Write(size[:]); err != nil {
		return fmt.Errorf("writing page table size: %w", err)
	}
	w.lastID = rec.DocID
	w.records++
	return nil
}

func (w *Writer) Records() int {
	return w.records
}

// Close flushes, syncs, and closes the file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flushing page table: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("syncing page table: %w", err)
	}
	return w.f.Close()
}

// Abort closes the file without flushing; the caller removes it.
func (w *Writer) Abort() {
	w.f.Close()
}

// Read decodes every record in r.
func Read(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	var records []Record
	for {
		var head [6]byte
		if _, err := io.ReadFull(br, head[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("%w: page table record header: %v", apperrors.ErrCorruptIndex, err)
		}
		urlLen := int(binary.BigEndian.Uint16(head[4:6]))
		rest := make([]byte, urlLen+8)
		if _, err := io.ReadFull(br, rest); err != nil {
			return records, fmt.Errorf("%w: truncated page table record: %v", apperrors.ErrCorruptIndex, err)
		}
		records = append(records, Record{
			DocID: binary.BigEndian.Uint32(head[0:4]),
			URL:   string(rest[:urlLen]),
			Size:  int64(binary.BigEndian.Uint64(rest[urlLen:])),
		})
	}
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page table: %w", err)
	}
	defer f.Close()
	return Read(f)
}
