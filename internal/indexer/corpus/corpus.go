// Package corpus reads a TREC-style document collection. Documents are
// delimited by lines that are exactly "<TEXT>" and "</TEXT>"; the first
// non-empty line inside a document is its URL and the remaining lines are its body. Files
// ending in ".gz" are decompressed transparently.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

const (
	TextStart = "<TEXT>"
	TextEnd   = "</TEXT>"

	maxLineSize = 16 << 20
)

type EventKind int

const (
	EventLine EventKind = iota
	EventDocStart
	EventDocEnd
)

// Event is one line of input classified by the boundary markers.
type Event struct {
	Kind EventKind
	Text string
}

// Source yields boundary-aware line events.
type Source struct {
	scanner *bufio.Scanner
	closers []io.Closer
	line    int
	event   Event
	err     error
}

// Open opens a corpus file, gunzipping it when the name ends in ".gz".
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.StageEmit, apperrors.ErrInvalidInput, "opening corpus %s: %v", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		src := NewSource(f)
		src.closers = append(src.closers, f)
		return src, nil
	}
	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, apperrors.Newf(apperrors.StageEmit, apperrors.ErrInvalidInput, "reading gzip header of %s: %v", path, err)
	}
	src := NewSource(zr)
	src.closers = append(src.closers, zr, f)
	return src, nil
}

func NewSource(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Source{scanner: sc}
}

// Next advances to the next event.
func (s *Source) Next() bool {
	if s.err != nil || !s.scanner.Scan() {
		if s.err == nil {
			if err := s.scanner.Err(); err != nil {
				s.err = apperrors.Newf(apperrors.StageEmit, apperrors.ErrInvalidInput, "line %d: %v", s.line+1, err)
			}
		}
		return false
	}
	s.line++
	text := s.scanner.Text()
	switch text {
	case TextStart:
		s.event = Event{Kind: EventDocStart}
	case TextEnd:
		s.event = Event{Kind: EventDocEnd}
	default:
		s.event = Event{Kind: EventLine, Text: text}
	}
	return true
}

func (s *Source) Event() Event {
	return s.event
}

// Line is the 1-based number of the current line.
func (s *Source) Line() int {
	return s.line
}

func (s *Source) Err() error {
	return s.err
}

func (s *Source) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Document is one assembled document.
type Document struct {
	ID   uint32
	URL  string
	Size int64
	Body []string
}

// Scan assembles documents from src and calls fn for each in ID order. IDs
// start at 1. The first non-empty line of a document is its URL. Lines
// outside a document, a repeated "<TEXT>" inside one, and a stray "</TEXT>"
// are ignored. Input that ends inside a document is malformed.
func Scan(src *Source, fn func(Document) error) (int, error) {
	var (
		doc      Document
		inside   bool
		nextID   uint32 = 1
		docCount int
	)
	for src.Next() {
		ev := src.Event()
		switch ev.Kind {
		case EventDocStart:
			if inside {
				continue
			}
			inside = true
			doc = Document{ID: nextID}
			nextID++
		case EventDocEnd:
			if !inside {
				continue
			}
			inside = false
			docCount++
			if err := fn(doc); err != nil {
				return docCount, err
			}
		case EventLine:
			if !inside {
				continue
			}
			doc.Size += int64(len(ev.Text))
			if doc.URL == "" {
				doc.URL = ev.Text
				continue
			}
			doc.Body = append(doc.Body, ev.Text)
		}
	}
	if err := src.Err(); err != nil {
		return docCount, err
	}
	if inside {
		return docCount, apperrors.Newf(apperrors.StageEmit, apperrors.ErrInvalidInput,
			"document %d is not closed before end of input", doc.ID)
	}
	return docCount, nil
}

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventDocStart:
		return "doc-start"
	case EventDocEnd:
		return "doc-end"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}
