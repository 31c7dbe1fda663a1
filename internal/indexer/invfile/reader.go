package invfile

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// Reader loads individual inverted lists by lexicon entry.
type Reader struct {
	file      *os.File
	filePath  string
	size      int64
	blockSize int
}

func OpenReader(path string, blockSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening inverted file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening inverted file: %w", err)
	}
	if blockSize <= 0 {
		blockSize = codec.DefaultBlockSize
	}
	return &Reader{
		file:      f,
		filePath:  path,
		size:      info.Size(),
		blockSize: blockSize,
	}, nil
}

// ReadRange returns the raw bytes bounded by the entry.
func (r *Reader) ReadRange(e lexicon.Entry) ([]byte, error) {
	if e.Start < 0 || e.End < e.Start || e.End >= r.size {
		return nil, fmt.Errorf("%w: term %q range [%d,%d] outside file of %d bytes",
			apperrors.ErrCorruptIndex, e.Term, e.Start, e.End, r.size)
	}
	buf := make([]byte, e.Len())
	if _, err := r.file.ReadAt(buf, e.Start); err != nil {
		return nil, fmt.Errorf("reading list for term %q: %w", e.Term, err)
	}
	return buf, nil
}

// ReadList decodes the entry's full inverted list.
func (r *Reader) ReadList(e lexicon.Entry) (*codec.DecodedList, error) {
	data, err := r.ReadRange(e)
	if err != nil {
		return nil, err
	}
	// every posting costs at least one byte of delta and one of frequency
	if e.DocFreq <= 0 || e.DocFreq > e.Len()/2 {
		return nil, fmt.Errorf("%w: term %q document frequency %d for %d bytes",
			apperrors.ErrCorruptIndex, e.Term, e.DocFreq, e.Len())
	}
	list, err := codec.DecodeList(data, int(e.DocFreq), r.blockSize)
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", e.Term, err)
	}
	return list, nil
}

func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
