package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/invfile"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/lexicon"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/resilience"
)

const usage = `usage:
  indexbuilder build  -input corpus.trec[.gz] [-config c.yaml] [-out dir]
  indexbuilder verify -dir dir
  indexbuilder dump   -dir dir -term t
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return apperrors.ExitUsage
	}
	var err error
	switch args[0] {
	case "build":
		err = runBuild(ctx, args[1:], stdout, stderr)
	case "verify":
		err = runVerify(ctx, args[1:], stdout, stderr)
	case "dump":
		err = runDump(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return apperrors.ExitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return apperrors.ExitUsage
	}
	var usageErr usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "%v\n%s", err, usage)
		return apperrors.ExitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "indexbuilder %s: %v\n", args[0], err)
	}
	return apperrors.ExitCode(err)
}

type usageError string

func (e usageError) Error() string { return string(e) }

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runBuild(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("build", stderr)
	configPath := fs.String("config", "", "path to config file")
	input := fs.String("input", "", "corpus file (.gz is decompressed)")
	outDir := fs.String("out", "", "output directory (overrides indexer.outputDir)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *input == "" {
		return usageError("build: -input is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return apperrors.New(apperrors.StageConfig, apperrors.ErrInvalidInput, err.Error())
	}
	if *outDir != "" {
		cfg.Indexer.OutputDir = *outDir
	}
	logger.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"input", *input,
		"output_dir", cfg.Indexer.OutputDir,
		"buffer_size", cfg.Indexer.BufferSize,
		"sort_workers", cfg.Indexer.SortWorkers,
	)

	m := metrics.New()
	checker := health.NewChecker(5 * time.Second)
	pub := publish.Options{
		OutputDir:         cfg.Indexer.OutputDir,
		InvalidatePattern: cfg.Redis.InvalidatePattern,
		Metrics:           m,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Publish.MaxAttempts,
			InitialDelay:   cfg.Publish.InitialDelay,
			AttemptTimeout: cfg.Publish.AttemptTimeout,
		},
	}
	var store *catalog.Store
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		checker.Register("kafka", health.PingCheck(producer))
		pub.Events = producer
	}
	if cfg.Redis.Enabled {
		rc := redis.NewClient(cfg.Redis)
		defer rc.Close()
		checker.Register("redis", health.PingCheck(rc))
		pub.Cache = rc
	}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return apperrors.New(apperrors.StagePreflight, apperrors.ErrDependencyUnavailable, err.Error())
		}
		defer pg.Close()
		checker.Register("postgres", health.PingCheck(pg))
		store = catalog.NewStore(pg, cfg.Indexer.OutputDir)
	}

	if checker.Len() > 0 {
		if err := checker.Preflight(ctx); err != nil {
			return err
		}
	}
	if store != nil {
		if err := store.EnsureSchema(ctx); err != nil {
			return apperrors.New(apperrors.StagePreflight, apperrors.ErrDependencyUnavailable, err.Error())
		}
	}

	if cfg.Metrics.Enabled {
		shutdown := m.StartServer(cfg.Metrics.Port, middleware.Wrap(map[string]http.Handler{
			"/healthz": checker.LiveHandler(),
			"/readyz":  checker.ReadyHandler(),
		}, middleware.Metrics(m)))
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	pipeline := indexer.NewPipeline(cfg.Indexer, m, cfg.Tracing.Enabled)
	if pub.Events != nil || pub.Cache != nil {
		pipeline.AddNotifier(publish.New(pub))
	}
	if store != nil {
		pipeline.AddNotifier(store)
	}

	res, buildErr := pipeline.Build(ctx, *input)
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}
	if buildErr != nil {
		return buildErr
	}
	fmt.Fprintf(stdout, "build %s: %d documents, %d terms, %d postings in %s\n",
		res.BuildID, res.Manifest.Documents, res.Manifest.Terms, res.Manifest.Postings,
		res.Duration.Round(time.Millisecond))
	return nil
}

func runVerify(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("verify", stderr)
	dir := fs.String("dir", "", "index directory")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *dir == "" {
		return usageError("verify: -dir is required")
	}
	logger.SetupWriter(stderr, "warn", "text")
	report, err := manifest.Verify(ctx, *dir)
	if err != nil {
		if apperrors.StageOf(err) == "" {
			err = apperrors.New(apperrors.StageVerify, err, *dir)
		}
		return err
	}
	fmt.Fprintf(stdout, "ok: build %s, %d documents, %d terms, %d postings, %d blocks, %d bytes\n",
		report.BuildID, report.Documents, report.Terms, report.Postings, report.Blocks, report.Bytes)
	return nil
}

func runDump(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("dump", stderr)
	dir := fs.String("dir", "", "index directory")
	term := fs.String("term", "", "term to print")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *dir == "" || *term == "" {
		return usageError("dump: -dir and -term are required")
	}
	// look terms up the way they were indexed
	tokens := tokenizer.Tokenize(*term)
	if len(tokens) != 1 {
		return apperrors.Newf(apperrors.StageVerify, apperrors.ErrInvalidInput, "%q is not a single term", *term)
	}
	key := tokens[0].Term

	m, err := manifest.Read(*dir)
	if err != nil {
		return err
	}
	entry, ok, err := lexicon.Find(filepath.Join(*dir, manifest.LexiconFile), key)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(stdout, "%s: not in index\n", key)
		return nil
	}
	r, err := invfile.OpenReader(filepath.Join(*dir, manifest.InvertedFile), m.BlockSize)
	if err != nil {
		return err
	}
	defer r.Close()
	list, err := r.ReadList(entry)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: df=%d bytes=[%d,%d] blocks=%d\n", entry.Term, entry.DocFreq, entry.Start, entry.End, len(list.Blocks))
	for i, id := range list.DocIDs {
		fmt.Fprintf(stdout, "%d %d\n", id, list.Freqs[i])
	}
	return nil
}
