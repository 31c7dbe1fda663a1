// Package invfile writes and reads the inverted file: one block-compressed
// list per term, concatenated in finalize order. The file has no header;
// term boundaries are known only through the lexicon.
package invfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/extsort"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

type state int

const (
	stateNoActiveTerm state = iota
	stateAccumulating
	stateDone
)

func (s state) String() string {
	switch s {
	case stateNoActiveTerm:
		return "no-active-term"
	case stateAccumulating:
		return "accumulating"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Builder groups a (term, docID)-ordered posting stream into one inverted
// list per term. Records must arrive in merged order; a term that reappears
// after another term has been finalized is rejected.
type Builder struct {
	w       io.Writer
	written int64
	state   state
	term    string
	docIDs  []uint32
	freqs   []uint32
	enc     *codec.ListEncoder
	lex     *lexicon.Lexicon
	blocks  int64
}

func NewBuilder(w io.Writer, blockSize int) *Builder {
	return &Builder{
		w:   w,
		enc: codec.NewListEncoder(blockSize),
		lex: lexicon.New(),
	}
}

// Add feeds the next record of the merged stream.
func (b *Builder) Add(p index.Posting) error {
	switch b.state {
	case stateDone:
		return fmt.Errorf("%w: add in state %s", apperrors.ErrInternal, b.state)
	case stateNoActiveTerm:
		b.start(p)
		return nil
	}
	if p.Term == b.term {
		last := b.docIDs[len(b.docIDs)-1]
		if p.DocID <= last {
			return fmt.Errorf("%w: term %q doc id %d follows %d", apperrors.ErrUnorderedStream, p.Term, p.DocID, last)
		}
		b.docIDs = append(b.docIDs, p.DocID)
		b.freqs = append(b.freqs, p.Frequency)
		return nil
	}
	if p.Term < b.term {
		return fmt.Errorf("%w: term %q follows %q", apperrors.ErrUnorderedStream, p.Term, b.term)
	}
	if err := b.finalize(); err != nil {
		return err
	}
	b.start(p)
	return nil
}

func (b *Builder) start(p index.Posting) {
	b.term = p.Term
	b.docIDs = append(b.docIDs[:0], p.DocID)
	b.freqs = append(b.freqs[:0], p.Frequency)
	b.state = stateAccumulating
}

// finalize compresses the accumulated term and records its lexicon entry.
func (b *Builder) finalize() error {
	data, err := b.enc.Encode(b.docIDs, b.freqs)
	if err != nil {
		return fmt.Errorf("encoding term %q: %w", b.term, err)
	}
	n, err := b.w.Write(data)
	b.written += int64(n)
	if err != nil {
		return fmt.Errorf("writing list for term %q: %w", b.term, err)
	}
	if _, err := b.lex.Record(b.term, b.written, len(b.docIDs)); err != nil {
		return err
	}
	b.blocks += int64(codec.NumBlocks(len(b.docIDs), b.enc.BlockSize()))
	b.state = stateNoActiveTerm
	return nil
}

// Finish finalizes the last term and returns the completed lexicon. The
// Builder accepts no records afterwards.
func (b *Builder) Finish() (*lexicon.Lexicon, error) {
	switch b.state {
	case stateDone:
		return b.lex, nil
	case stateAccumulating:
		if err := b.finalize(); err != nil {
			return nil, err
		}
	}
	b.state = stateDone
	return b.lex, nil
}

// Written is the number of inverted-file bytes produced so far.
func (b *Builder) Written() int64 {
	return b.written
}

// Blocks is the number of compressed blocks written so far.
func (b *Builder) Blocks() int64 {
	return b.blocks
}

// Result summarizes the invert stage.
type Result struct {
	Path     string
	Bytes    int64
	Terms    int
	Postings int64
	Blocks   int64
	Lexicon  *lexicon.Lexicon
}

// BuildFile reads the merged posting stream at merged in a single forward
// pass and writes the inverted file to out. The caller owns the lexicon in
// the result and is responsible for persisting it.
func BuildFile(ctx context.Context, merged, out string, blockSize int) (Result, error) {
	logger := slog.Default().With("component", "inverted-list-builder")
	res := Result{Path: out}

	in, err := os.Open(merged)
	if err != nil {
		return res, fmt.Errorf("opening merged stream: %w", err)
	}
	defer in.Close()

	f, err := os.Create(out)
	if err != nil {
		return res, fmt.Errorf("creating inverted file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 256*1024)
	b := NewBuilder(w, blockSize)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), extsort.MaxRecordSize)
	var line int64
	for sc.Scan() {
		line++
		if line%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		p, err := index.ParseRecord(sc.Bytes())
		if err != nil {
			return res, fmt.Errorf("merged stream line %d: %w", line, err)
		}
		if err := b.Add(p); err != nil {
			return res, fmt.Errorf("merged stream line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading merged stream: %w", err)
	}
	lex, err := b.Finish()
	if err != nil {
		return res, err
	}
	if err := w.Flush(); err != nil {
		return res, fmt.Errorf("flushing inverted file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return res, fmt.Errorf("syncing inverted file: %w", err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("closing inverted file: %w", err)
	}

	res.Bytes = b.Written()
	res.Terms = lex.Len()
	res.Postings = lex.Postings()
	res.Blocks = b.Blocks()
	res.Lexicon = lex
	logger.Info("inverted lists written",
		"terms", res.Terms,
		"postings", res.Postings,
		"blocks", res.Blocks,
		"bytes", res.Bytes,
		"path", out,
	)
	return res, nil
}
