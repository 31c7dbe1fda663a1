package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/invfile"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/lexicon"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/pagetable"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

// Report is what Verify found in a complete index.
type Report struct {
	BuildID   string
	Documents int
	Terms     int
	Postings  int64
	Blocks    int64
	Bytes     int64
}

// Verify checks the index in dir end to end: artifact checksums, page table
// order, lexicon contiguity, and a full decode of every inverted list.
func Verify(ctx context.Context, dir string) (*Report, error) {
	logger := slog.Default().With("component", "verifier")
	m, err := Read(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{InvertedFile, LexiconFile, PageTableFile} {
		if _, ok := m.Artifact(name); !ok {
			return nil, fmt.Errorf("%w: manifest does not list %s", apperrors.ErrCorruptIndex, name)
		}
	}
	if err := CheckArtifacts(dir, m); err != nil {
		return nil, err
	}

	pages, err := pagetable.ReadFile(filepath.Join(dir, PageTableFile))
	if err != nil {
		return nil, err
	}
	if len(pages) != m.Documents {
		return nil, fmt.Errorf("%w: page table has %d documents, manifest records %d",
			apperrors.ErrCorruptIndex, len(pages), m.Documents)
	}
	for i, rec := range pages {
		if rec.DocID != uint32(i+1) {
			return nil, fmt.Errorf("%w: page table record %d has doc id %d", apperrors.ErrCorruptIndex, i, rec.DocID)
		}
	}

	r, err := invfile.OpenReader(filepath.Join(dir, InvertedFile), m.BlockSize)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	lf, err := os.Open(filepath.Join(dir, LexiconFile))
	if err != nil {
		return nil, fmt.Errorf("opening lexicon: %w", err)
	}
	defer lf.Close()

	report := &Report{BuildID: m.BuildID, Documents: len(pages), Bytes: r.Size()}
	nextStart := int64(0)
	sc := lexicon.NewScanner(lf)
	for sc.Next() {
		if report.Terms%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		e := sc.Entry()
		if e.Start != nextStart {
			return nil, fmt.Errorf("%w: term %q starts at %d, expected %d",
				apperrors.ErrCorruptIndex, e.Term, e.Start, nextStart)
		}
		list, err := r.ReadList(e)
		if err != nil {
			return nil, err
		}
		for i, id := range list.DocIDs {
			if id == 0 || id > uint64(len(pages)) {
				return nil, fmt.Errorf("%w: term %q references unknown document %d",
					apperrors.ErrCorruptIndex, e.Term, id)
			}
			if i > 0 && id <= list.DocIDs[i-1] {
				return nil, fmt.Errorf("%w: term %q doc ids not increasing at %d",
					apperrors.ErrCorruptIndex, e.Term, i)
			}
		}
		report.Terms++
		report.Postings += e.DocFreq
		report.Blocks += int64(len(list.Blocks))
		nextStart = e.End + 1
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if nextStart != r.Size() {
		return nil, fmt.Errorf("%w: lexicon covers %d bytes of a %d byte inverted file",
			apperrors.ErrCorruptIndex, nextStart, r.Size())
	}
	if report.Terms != m.Terms || report.Postings != m.Postings {
		return nil, fmt.Errorf("%w: found %d terms and %d postings, manifest records %d and %d",
			apperrors.ErrCorruptIndex, report.Terms, report.Postings, m.Terms, m.Postings)
	}
	logger.Info("index verified",
		"build_id", report.BuildID,
		"documents", report.Documents,
		"terms", report.Terms,
		"postings", report.Postings,
		"blocks", report.Blocks,
	)
	return report, nil
}
