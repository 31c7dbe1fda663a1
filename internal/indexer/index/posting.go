package index

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// Posting is one (term, document, frequency) fact.
type Posting struct {
	Term      string
	DocID     uint32
	Frequency uint32
}

// Compare orders postings by term bytes, then by ascending document ID. Run
// sorting and the k-way merge both use it, so the merged stream is grouped by
// term.
func Compare(a, b Posting) int {
	if c := strings.Compare(a.Term, b.Term); c != 0 {
		return c
	}
	switch {
	case a.DocID < b.DocID:
		return -1
	case a.DocID > b.DocID:
		return 1
	}
	return 0
}

// AppendRecord appends the run-file text form "<term> <docID> <frequency>\n".
func AppendRecord(dst []byte, p Posting) []byte {
	dst = append(dst, p.Term...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(p.DocID), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(p.Frequency), 10)
	return append(dst, '\n')
}

// RecordLen is the encoded size of p in bytes, newline included.
func RecordLen(p Posting) int {
	return len(p.Term) + 2 + digits(p.DocID) + digits(p.Frequency) + 1
}

func digits(v uint32) int {
	n := 1
	for v >= 10 {
		v /= 10
		n++
	}
	return n
}

// ParseRecord decodes one run-file line. The trailing newline is optional.
func ParseRecord(line []byte) (Posting, error) {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	fields := bytes.Split(line, []byte{' '})
	if len(fields) != 3 || len(fields[0]) == 0 {
		return Posting{}, fmt.Errorf("%w: %q", apperrors.ErrMalformedRecord, line)
	}
	docID, err := strconv.ParseUint(string(fields[1]), 10, 32)
	if err != nil {
		return Posting{}, fmt.Errorf("%w: doc id in %q: %v", apperrors.ErrMalformedRecord, line, err)
	}
	freq, err := strconv.ParseUint(string(fields[2]), 10, 32)
	if err != nil || freq == 0 {
		return Posting{}, fmt.Errorf("%w: frequency in %q", apperrors.ErrMalformedRecord, line)
	}
	return Posting{
		Term:      string(fields[0]),
		DocID:     uint32(docID),
		Frequency: uint32(freq),
	}, nil
}

func (p Posting) String() string {
	return fmt.Sprintf("%s %d %d", p.Term, p.DocID, p.Frequency)
}
