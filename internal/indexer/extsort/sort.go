// Package extsort orders run files by (term, docID) and merges them into a
// single posting stream. Run sorting and the merge share index.Compare, so
// the merged stream is grouped by term with ascending document IDs.
package extsort

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
)

// MaxRecordSize bounds one run-file line: the longest corpus line plus the
// two numeric fields.
const MaxRecordSize = 16<<20 + 32

// SortedPath names the sorted counterpart of a run file.
func SortedPath(run string) string {
	return strings.TrimSuffix(run, ".run") + ".sorted"
}

// SortRun sorts every record of the run file at in and writes them to out.
// The whole run is held in memory; its size is bounded by the spill buffer.
func SortRun(in, out string) (int, error) {
	postings, err := readRun(in)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(postings, func(i, j int) bool {
		return index.Compare(postings[i], postings[j]) < 0
	})
	if err := writeRun(out, postings); err != nil {
		return 0, err
	}
	return len(postings), nil
}

func readRun(path string) ([]index.Posting, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run file: %w", err)
	}
	defer f.Close()
	var postings []index.Posting
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), MaxRecordSize)
	line := 0
	for sc.Scan() {
		line++
		p, err := index.ParseRecord(sc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		postings = append(postings, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading run file %s: %w", path, err)
	}
	return postings, nil
}

func writeRun(path string, postings []index.Posting) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sorted run: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 256*1024)
	var rec []byte
	for _, p := range postings {
		rec = index.AppendRecord(rec[:0], p)
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("writing sorted run %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing sorted run %s: %w", path, err)
	}
	return f.Close()
}

// Sorter sorts run files, up to Workers at a time.
type Sorter struct {
	Workers  int
	KeepRuns bool
	logger   *slog.Logger
}

func NewSorter(workers int, keepRuns bool) *Sorter {
	if workers <= 0 {
		workers = 1
	}
	return &Sorter{
		Workers:  workers,
		KeepRuns: keepRuns,
		logger:   slog.Default().With("component", "run-sorter"),
	}
}

// SortAll sorts every run and returns the sorted files in run order. Unless
// KeepRuns is set, each original run is deleted once its sorted copy exists.
func (s *Sorter) SortAll(ctx context.Context, runs []string) ([]string, error) {
	sorted := make([]string, len(runs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, run := range runs {
		i, run := i, run
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := SortedPath(run)
			n, err := SortRun(run, out)
			if err != nil {
				return fmt.Errorf("sorting run %d: %w", i+1, err)
			}
			if !s.KeepRuns {
				if err := os.Remove(run); err != nil {
					return fmt.Errorf("removing run file %s: %w", run, err)
				}
			}
			sorted[i] = out
			s.logger.Debug("run sorted", "run", i+1, "records", n, "path", out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Info("run files sorted", "runs", len(runs), "workers", s.Workers)
	return sorted, nil
}
