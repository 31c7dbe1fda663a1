// Package lexicon records, for every term written to the inverted file, the
// inclusive byte range its list occupies and its document frequency.
//
// The on-disk lexicon is a flat sequence of records in the order terms were
// finalized:
//
//	┌───────────┬────────────┬───────────────┬─────────────┬─────────────────┐
//	│ len (u16) │ term bytes │ start (int64) │ end (int64) │ docFreq (int64) │
//	└───────────┴────────────┴───────────────┴─────────────┴─────────────────┘
//
// All integers are big-endian. There is no header or index; readers scan it
// linearly.
package lexicon

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

// MaxTermLen is the longest term the length prefix can describe.
const MaxTermLen = math.MaxUint16

// Entry locates one term's inverted list.
type Entry struct {
	Term    string
	Start   int64
	End     int64
	DocFreq int64
}

// Len is the number of bytes the entry's list occupies.
func (e Entry) Len() int64 {
	return e.End - e.Start + 1
}

// Lexicon is the append-only list of entries for one build.
type Lexicon struct {
	entries   []Entry
	nextStart int64
	postings  int64
}

func New() *Lexicon {
	return &Lexicon{}
}

// Record appends the entry for a term whose list has just been written.
// totalWritten is the inverted file size after the write; the entry starts
// one byte past the previous entry's end.
func (l *Lexicon) Record(term string, totalWritten int64, docFreq int) (Entry, error) {
	if len(term) == 0 || len(term) > MaxTermLen {
		return Entry{}, fmt.Errorf("%w: term length %d", apperrors.ErrInvalidInput, len(term))
	}
	if docFreq <= 0 {
		return Entry{}, fmt.Errorf("%w: term %q has document frequency %d", apperrors.ErrInternal, term, docFreq)
	}
	end := totalWritten - 1
	if end < l.nextStart {
		return Entry{}, fmt.Errorf("%w: term %q wrote no bytes (offset %d)", apperrors.ErrInternal, term, totalWritten)
	}
	e := Entry{
		Term:    term,
		Start:   l.nextStart,
		End:     end,
		DocFreq: int64(docFreq),
	}
	l.entries = append(l.entries, e)
	l.nextStart = end + 1
	l.postings += int64(docFreq)
	return e, nil
}

func (l *Lexicon) Entries() []Entry {
	return l.entries
}

func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Postings is the sum of document frequencies over all entries.
func (l *Lexicon) Postings() int64 {
	return l.postings
}

// WriteTo serializes every entry to w.
func (l *Lexicon) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	var fixed [2 + 8*3]byte
	for _, e := range l.entries {
		binary.BigEndian.PutUint16(fixed[0:2], uint16(len(e.Term)))
		if _, err := bw.Write(fixed[0:2]); err != nil {
			return written, fmt.Errorf("writing term length: %w", err)
		}
		if _, err := bw.WriteString(e.Term); err != nil {
			return written, fmt.Errorf("writing term %q: %w", e.Term, err)
		}
		binary.BigEndian.PutUint64(fixed[2:10], uint64(e.Start))
		binary.BigEndian.PutUint64(fixed[10:18], uint64(e.End))
		binary.BigEndian.PutUint64(fixed[18:26], uint64(e.DocFreq))
		if _, err := bw.Write(fixed[2:]); err != nil {
			return written, fmt.Errorf("writing offsets for %q: %w", e.Term, err)
		}
		written += int64(len(fixed) + len(e.Term))
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flushing lexicon: %w", err)
	}
	return written, nil
}

// WriteFile writes the lexicon to path and syncs it.
func (l *Lexicon) WriteFile(path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating lexicon file: %w", err)
	}
	defer f.Close()
	n, err := l.WriteTo(f)
	if err != nil {
		return n, err
	}
	if err := f.Sync(); err != nil {
		return n, fmt.Errorf("syncing lexicon file: %w", err)
	}
	return n, f.Close()
}

// Scanner reads lexicon records one at a time.
type Scanner struct {
	r     *bufio.Reader
	entry Entry
	err   error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Next advances to the next record. It returns false at end of input or on
// error; Err distinguishes the two.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	var lenBuf [2]byte
	if _, err := io.ReadFull(s.r, lenBuf[:]); err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("%w: reading term length: %v", apperrors.ErrCorruptIndex, err)
		}
		return false
	}
	termLen := int(binary.BigEndian.Uint16(lenBuf[:]))
	rest := make([]byte, termLen+24)
	if _, err := io.ReadFull(s.r, rest); err != nil {
		s.err = fmt.Errorf("%w: truncated lexicon record: %v", apperrors.ErrCorruptIndex, err)
		return false
	}
	s.entry = Entry{
		Term:    string(rest[:termLen]),
		Start:   int64(binary.BigEndian.Uint64(rest[termLen : termLen+8])),
		End:     int64(binary.BigEndian.Uint64(rest[termLen+8 : termLen+16])),
		DocFreq: int64(binary.BigEndian.Uint64(rest[termLen+16 : termLen+24])),
	}
	return true
}

func (s *Scanner) Entry() Entry {
	return s.entry
}

func (s *Scanner) Err() error {
	return s.err
}

// Read decodes every record in r.
func Read(r io.Reader) ([]Entry, error) {
	s := NewScanner(r)
	var entries []Entry
	for s.Next() {
		entries = append(entries, s.Entry())
	}
	return entries, s.Err()
}

// ReadFile decodes every record in the lexicon at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening lexicon: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Find scans the lexicon at path for term.
func Find(path, term string) (Entry, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, false, fmt.Errorf("opening lexicon: %w", err)
	}
	defer f.Close()
	s := NewScanner(f)
	for s.Next() {
		if s.Entry().Term == term {
			return s.Entry(), true, nil
		}
	}
	return Entry{}, false, s.Err()
}
