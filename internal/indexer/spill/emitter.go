package spill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/pagetable"
)

// PageSink receives one record per document. pagetable.Writer satisfies it.
type PageSink interface {
	Add(rec pagetable.Record) error
}

// EmitResult summarizes the emission stage.
type EmitResult struct {
	Documents int
	Tokens    int64
	Postings  int64
	RunBytes  int64
	Runs      []string
}

// Emitter turns a corpus into run files: for each document it merges repeated
// terms, sorts them, and hands the postings to the spill Writer.
type Emitter struct {
	writer *Writer
	pages  PageSink
	logger *slog.Logger
}

func NewEmitter(writer *Writer, pages PageSink) *Emitter {
	return &Emitter{
		writer: writer,
		pages:  pages,
		logger: slog.Default().With("component", "emitter"),
	}
}

// Run consumes src to the end. The returned run files are ready for sorting.
func (e *Emitter) Run(ctx context.Context, src *corpus.Source) (EmitResult, error) {
	var res EmitResult
	terms := index.NewDocumentTerms(0)
	docs, err := corpus.Scan(src, func(doc corpus.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.pages != nil {
			if err := e.pages.Add(pagetable.Record{DocID: doc.ID, URL: doc.URL, Size: doc.Size}); err != nil {
				return err
			}
		}
		terms.Reset(doc.ID)
		for _, line := range doc.Body {
			terms.AddLine(line)
		}
		res.Tokens += int64(terms.TokenCount())
		for _, p := range terms.Postings() {
			if err := e.writer.Add(p); err != nil {
				return fmt.Errorf("emitting postings for document %d: %w", doc.ID, err)
			}
		}
		return nil
	})
	res.Documents = docs
	if err != nil {
		return res, err
	}
	runs, err := e.writer.Close()
	if err != nil {
		return res, err
	}
	res.Runs = runs
	res.Postings = e.writer.Postings()
	res.RunBytes = e.writer.BytesWritten()
	e.logger.Info("postings emitted",
		"documents", res.Documents,
		"postings", res.Postings,
		"run_files", len(res.Runs),
	)
	return res, nil
}
