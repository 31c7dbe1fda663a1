// Package publish announces completed builds: an IndexBuilt event on Kafka
// and invalidation of cached search results in Redis. Both sinks are
// optional and retried; neither can fail a build.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/resilience"
)

// IndexBuilt is the event value published for every completed build.
type IndexBuilt struct {
	BuildID   string              `json:"build_id"`
	OutputDir string              `json:"output_dir"`
	CreatedAt time.Time           `json:"created_at"`
	Documents int                 `json:"documents"`
	Terms     int                 `json:"terms"`
	Postings  int64               `json:"postings"`
	BlockSize int                 `json:"block_size"`
	Artifacts []manifest.Artifact `json:"artifacts"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// CacheInvalidator is satisfied by *redis.Client.
type CacheInvalidator interface {
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Options configures a Publisher. Nil sinks are skipped.
type Options struct {
	OutputDir         string
	Events            EventPublisher
	Cache             CacheInvalidator
	InvalidatePattern string
	Retry             resilience.RetryConfig
	Metrics           *metrics.Metrics
}

// Publisher fans a completed build out to the configured sinks.
type Publisher struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Publisher {
	return &Publisher{
		opts:   opts,
		logger: slog.Default().With("component", "publisher"),
	}
}

// Notify publishes the event first and then invalidates caches, so consumers
// that react to the event never repopulate a cache from the old index after
// it was flushed. Every sink is attempted; their errors are joined.
func (p *Publisher) Notify(ctx context.Context, m *manifest.Manifest) error {
	var errs []error
	if p.opts.Events != nil {
		err := resilience.Retry(ctx, "kafka-publish", p.opts.Retry, func(ctx context.Context) error {
			return p.opts.Events.Publish(ctx, kafka.Event{Key: m.BuildID, Value: newIndexBuilt(p.opts.OutputDir, m)})
		})
		p.record("kafka", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("publishing index-built event: %w", err))
		}
	}
	if p.opts.Cache != nil && p.opts.InvalidatePattern != "" {
		var deleted int64
		err := resilience.Retry(ctx, "redis-invalidate", p.opts.Retry, func(ctx context.Context) error {
			n, err := p.opts.Cache.FlushByPattern(ctx, p.opts.InvalidatePattern)
			deleted += n
			return err
		})
		p.record("redis", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalidating cache: %w", err))
		} else {
			p.logger.Info("search cache invalidated", "pattern", p.opts.InvalidatePattern, "keys", deleted)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) record(sink string, err error) {
	if p.opts.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.opts.Metrics.PublishTotal.WithLabelValues(sink, status).Inc()
}

func newIndexBuilt(dir string, m *manifest.Manifest) IndexBuilt {
	return IndexBuilt{
		BuildID:   m.BuildID,
		OutputDir: dir,
		CreatedAt: m.CreatedAt,
		Documents: m.Documents,
		Terms:     m.Terms,
		Postings:  m.Postings,
		BlockSize: m.BlockSize,
		Artifacts: m.Artifacts,
	}
}
