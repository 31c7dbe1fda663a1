package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/extsort"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/invfile"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/pagetable"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/spill"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/tracing"
)

// Notifier is told about every completed build. A notifier failure is logged
// and never undoes the build.
type Notifier interface {
	Notify(ctx context.Context, m *manifest.Manifest) error
}

// Pipeline runs the build stages in order: emit, sort, merge, invert,
// lexicon, manifest. Every stage finishes before the next starts.
type Pipeline struct {
	cfg       config.IndexerConfig
	metrics   *metrics.Metrics
	tracing   bool
	notifiers []Notifier
	logger    *slog.Logger
}

func NewPipeline(cfg config.IndexerConfig, m *metrics.Metrics, tracing bool) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		metrics: m,
		tracing: tracing,
		logger:  slog.Default().With("component", "pipeline"),
	}
}

// AddNotifier registers a post-build notifier.
func (p *Pipeline) AddNotifier(n Notifier) {
	p.notifiers = append(p.notifiers, n)
}

// Result describes a completed build.
type Result struct {
	BuildID  string
	Dir      string
	Manifest *manifest.Manifest
	Emit     spill.EmitResult
	Merge    extsort.MergeResult
	Duration time.Duration
}

// Build indexes the corpus at input into the configured output directory.
// Artifacts are written as .tmp files and renamed once all of them exist;
// the manifest goes last. Any manifest from an earlier build is removed
// first, so a failed build is always detectable as incomplete.
func (p *Pipeline) Build(ctx context.Context, input string) (*Result, error) {
	start := time.Now()
	buildID := newBuildID(start)
	ctx = logger.WithBuildID(ctx, buildID)
	ctx, root := tracing.StartSpan(ctx, "build", buildID)
	log := logger.FromContext(ctx).With("component", "pipeline")

	res, err := p.build(ctx, input, buildID)
	root.End(err)
	if p.metrics != nil {
		p.metrics.BuildFinished(err)
	}
	if p.tracing {
		root.Log(log)
	}
	if err != nil {
		log.Error("build failed", "stage", apperrors.StageOf(err), "error", err)
		return nil, err
	}
	res.Duration = time.Since(start)
	log.Info("build complete",
		"documents", res.Manifest.Documents,
		"terms", res.Manifest.Terms,
		"postings", res.Manifest.Postings,
		"duration", res.Duration.Round(time.Millisecond),
	)

	for _, n := range p.notifiers {
		if err := n.Notify(ctx, res.Manifest); err != nil {
			log.Warn("post-build notification failed", "error", err)
		}
	}
	return res, nil
}

func (p *Pipeline) build(ctx context.Context, input, buildID string) (*Result, error) {
	outDir := p.cfg.OutputDir
	workDir := filepath.Join(p.cfg.WorkDir, buildID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, apperrors.New(apperrors.StageConfig, err, "creating output directory")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, apperrors.New(apperrors.StageConfig, err, "creating work directory")
	}
	if !p.cfg.KeepRunFiles {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				p.logger.Warn("failed to remove work directory", "path", workDir, "error", err)
			}
		}()
	}
	if err := manifest.Remove(outDir); err != nil {
		return nil, apperrors.New(apperrors.StageManifest, err, "invalidating previous build")
	}

	tmp := func(name string) string { return filepath.Join(outDir, name+".tmp") }
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, name := range []string{manifest.InvertedFile, manifest.LexiconFile, manifest.PageTableFile} {
			os.Remove(tmp(name))
		}
	}()

	res := &Result{BuildID: buildID, Dir: outDir}

	var emit spill.EmitResult
	err := p.stage(ctx, apperrors.StageEmit, func(ctx context.Context, span *tracing.Span) error {
		src, err := corpus.Open(input)
		if err != nil {
			return err
		}
		defer src.Close()
		pages, err := pagetable.Create(tmp(manifest.PageTableFile))
		if err != nil {
			return err
		}
		w, err := spill.NewWriter(workDir, p.cfg.BufferSize)
		if err != nil {
			pages.Abort()
			return err
		}
		emit, err = spill.NewEmitter(w, pages).Run(ctx, src)
		if err != nil {
			pages.Abort()
			return err
		}
		span.SetAttr("documents", emit.Documents)
		span.SetAttr("run_files", len(emit.Runs))
		return pages.Close()
	})
	if err != nil {
		return nil, err
	}
	res.Emit = emit
	if p.metrics != nil {
		p.metrics.DocumentsTotal.Add(float64(emit.Documents))
		p.metrics.TokensTotal.Add(float64(emit.Tokens))
		p.metrics.RunFiles.Set(float64(len(emit.Runs)))
		p.metrics.RunBytesTotal.Add(float64(emit.RunBytes))
	}

	var sorted []string
	err = p.stage(ctx, apperrors.StageSort, func(ctx context.Context, span *tracing.Span) error {
		var err error
		sorted, err = extsort.NewSorter(p.cfg.SortWorkers, p.cfg.KeepRunFiles).SortAll(ctx, emit.Runs)
		span.SetAttr("workers", p.cfg.SortWorkers)
		return err
	})
	if err != nil {
		return nil, err
	}

	mergedPath := filepath.Join(workDir, "merged.txt")
	err = p.stage(ctx, apperrors.StageMerge, func(ctx context.Context, span *tracing.Span) error {
		var err error
		res.Merge, err = extsort.NewMerger(p.cfg.KeepRunFiles).Merge(ctx, sorted, mergedPath)
		span.SetAttr("records", res.Merge.Records)
		return err
	})
	if err != nil {
		return nil, err
	}

	var inv invfile.Result
	err = p.stage(ctx, apperrors.StageInvert, func(ctx context.Context, span *tracing.Span) error {
		var err error
		inv, err = invfile.BuildFile(ctx, mergedPath, tmp(manifest.InvertedFile), p.cfg.BlockSize)
		span.SetAttr("terms", inv.Terms)
		span.SetAttr("bytes", inv.Bytes)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !p.cfg.KeepRunFiles {
		os.Remove(mergedPath)
	}

	err = p.stage(ctx, apperrors.StageLexicon, func(ctx context.Context, span *tracing.Span) error {
		n, err := inv.Lexicon.WriteFile(tmp(manifest.LexiconFile))
		span.SetAttr("bytes", n)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, apperrors.StageManifest, func(ctx context.Context, span *tracing.Span) error {
		m := &manifest.Manifest{
			BuildID:   buildID,
			CreatedAt: time.Now().UTC(),
			Documents: emit.Documents,
			Terms:     inv.Terms,
			Postings:  inv.Postings,
			Blocks:    inv.Blocks,
			BlockSize: p.cfg.BlockSize,
		}
		// inverted file before lexicon: a lexicon never exists without its lists
		for _, name := range []string{manifest.InvertedFile, manifest.LexiconFile, manifest.PageTableFile} {
			if err := os.Rename(tmp(name), filepath.Join(outDir, name)); err != nil {
				return fmt.Errorf("renaming %s: %w", name, err)
			}
			a, err := manifest.Checksum(outDir, name)
			if err != nil {
				return err
			}
			m.Artifacts = append(m.Artifacts, a)
		}
		committed = true
		if err := manifest.Write(outDir, m); err != nil {
			return err
		}
		res.Manifest = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.PostingsTotal.Add(float64(inv.Postings))
		p.metrics.TermsTotal.Add(float64(inv.Terms))
		p.metrics.BlocksTotal.Add(float64(inv.Blocks))
		for _, a := range res.Manifest.Artifacts {
			p.metrics.ArtifactBytes.WithLabelValues(a.Name).Set(float64(a.Size))
		}
	}
	return res, nil
}

// stage runs fn under a child span, records its duration, and tags any error
// with the stage name.
func (p *Pipeline) stage(ctx context.Context, stage apperrors.Stage, fn func(context.Context, *tracing.Span) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.New(stage, err, "build cancelled")
	}
	ctx, span := tracing.StartChildSpan(ctx, string(stage))
	err := fn(ctx, span)
	d := span.End(err)
	if p.metrics != nil {
		p.metrics.ObserveStage(string(stage), d)
	}
	if err == nil {
		logger.FromContext(ctx).Debug("stage complete", "component", "pipeline", "stage", stage, "duration", d)
		return nil
	}
	var buildErr *apperrors.BuildError
	if errors.As(err, &buildErr) {
		return err
	}
	return apperrors.New(stage, err, "stage failed")
}

func newBuildID(t time.Time) string {
	return fmt.Sprintf("%s-%08x", t.UTC().Format("20060102T150405Z"), rand.Uint32())
}
