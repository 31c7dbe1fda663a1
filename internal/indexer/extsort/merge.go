package extsort

import (
	"bufio"
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// cursor is one sorted run being merged.
type cursor struct {
	path    string
	f       *os.File
	sc      *bufio.Scanner
	line    int
	current index.Posting
}

func openCursor(path string) (*cursor, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("opening sorted run: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), MaxRecordSize)
	c := &cursor{path: path, f: f, sc: sc}
	ok, err := c.advance()
	if err != nil || !ok {
		f.Close()
		return nil, false, err
	}
	return c, true, nil
}

// advance loads the next record and checks it does not go backwards.
func (c *cursor) advance() (bool, error) {
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return false, fmt.Errorf("reading %s: %w", c.path, err)
		}
		return false, nil
	}
	c.line++
	p, err := index.ParseRecord(c.sc.Bytes())
	if err != nil {
		return false, fmt.Errorf("%s:%d: %w", c.path, c.line, err)
	}
	if c.line > 1 && index.Compare(p, c.current) < 0 {
		return false, fmt.Errorf("%w: %s:%d: %q sorts before %q",
			apperrors.ErrUnorderedStream, c.path, c.line, p.String(), c.current.String())
	}
	c.current = p
	return true, nil
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if c := index.Compare(h[i].current, h[j].current); c != 0 {
		return c < 0
	}
	// equal keys come out in run order so the merge is stable
	return h[i].path < h[j].path
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// MergeResult summarizes the merge stage.
type MergeResult struct {
	Path    string
	Records int64
	Terms   int64
}

// Merger performs the k-way merge of sorted runs.
type Merger struct {
	KeepRuns bool
	logger   *slog.Logger
}

func NewMerger(keepRuns bool) *Merger {
	return &Merger{
		KeepRuns: keepRuns,
		logger:   slog.Default().With("component", "run-merger"),
	}
}

// Merge writes every record of the sorted runs to out in (term, docID) order
// using a min-heap with one buffered reader per run. A (term, docID) pair
// that appears twice is rejected. Unless KeepRuns is set, the sorted runs are
// deleted after a successful merge.
func (m *Merger) Merge(ctx context.Context, sorted []string, out string) (MergeResult, error) {
	res := MergeResult{Path: out}
	h := make(cursorHeap, 0, len(sorted))
	defer func() {
		for _, c := range h {
			c.f.Close()
		}
	}()
	for _, path := range sorted {
		c, ok, err := openCursor(path)
		if err != nil {
			return res, err
		}
		if ok {
			h = append(h, c)
		}
	}
	heap.Init(&h)

	f, err := os.Create(out)
	if err != nil {
		return res, fmt.Errorf("creating merged file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 256*1024)

	var (
		rec  []byte
		prev index.Posting
	)
	for h.Len() > 0 {
		if res.Records%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		c := h[0]
		p := c.current
		if res.Records > 0 {
			cmp := index.Compare(prev, p)
			if cmp == 0 {
				return res, fmt.Errorf("%w: duplicate posting %q", apperrors.ErrUnorderedStream, p.String())
			}
			if prev.Term != p.Term {
				res.Terms++
			}
		} else {
			res.Terms = 1
		}
		rec = index.AppendRecord(rec[:0], p)
		if _, err := w.Write(rec); err != nil {
			return res, fmt.Errorf("writing merged file: %w", err)
		}
		res.Records++
		prev = p

		ok, err := c.advance()
		if err != nil {
			return res, err
		}
		if ok {
			heap.Fix(&h, 0)
		} else {
			c.f.Close()
			heap.Pop(&h)
		}
	}
	if err := w.Flush(); err != nil {
		return res, fmt.Errorf("flushing merged file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return res, fmt.Errorf("syncing merged file: %w", err)
	}
	if !m.KeepRuns {
		for _, path := range sorted {
			if err := os.Remove(path); err != nil {
				m.logger.Warn("failed to remove sorted run", "path", path, "error", err)
			}
		}
	}
	m.logger.Info("runs merged",
		"runs", len(sorted),
		"records", res.Records,
		"terms", res.Terms,
		"path", out,
	)
	return res, nil
}
