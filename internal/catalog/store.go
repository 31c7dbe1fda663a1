// Package catalog keeps a history of completed builds in PostgreSQL.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_builds (
    build_id    TEXT PRIMARY KEY,
    output_dir  TEXT NOT NULL,
    documents   INTEGER NOT NULL,
    terms       INTEGER NOT NULL,
    postings    BIGINT NOT NULL,
    blocks      BIGINT NOT NULL,
    block_size  INTEGER NOT NULL,
    artifacts   JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
)`

// Build is one row of the catalog.
type Build struct {
	BuildID   string
	OutputDir string
	Documents int
	Terms     int
	Postings  int64
	Blocks    int64
	BlockSize int
	Artifacts []manifest.Artifact
	CreatedAt time.Time
}

// Store records builds in the index_builds table.
type Store struct {
	db        *postgres.Client
	outputDir string
	logger    *slog.Logger
}

// NewStore creates a Store that attributes every recorded build to
// outputDir.
func NewStore(db *postgres.Client, outputDir string) *Store {
	return &Store{
		db:        db,
		outputDir: outputDir,
		logger:    slog.Default().With("component", "build-catalog"),
	}
}

// EnsureSchema creates the index_builds table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating index_builds table: %w", err)
	}
	return nil
}

// Notify records a completed build. A build ID that is already present is
// left untouched.
func (s *Store) Notify(ctx context.Context, m *manifest.Manifest) error {
	artifacts, err := json.Marshal(m.Artifacts)
	if err != nil {
		return fmt.Errorf("marshaling artifacts: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO index_builds
			    (build_id, output_dir, documents, terms, postings, blocks, block_size, artifacts, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (build_id) DO NOTHING`,
			m.BuildID, s.outputDir, m.Documents, m.Terms, m.Postings, m.Blocks, m.BlockSize,
			artifacts, m.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording build %s: %w", m.BuildID, err)
	}
	s.logger.Info("build recorded", "build_id", m.BuildID, "terms", m.Terms)
	return nil
}

// Latest returns the most recent build, or nil, nil when none is recorded.
func (s *Store) Latest(ctx context.Context) (*Build, error) {
	builds, err := s.List(ctx, 1)
	if err != nil || len(builds) == 0 {
		return nil, err
	}
	return &builds[0], nil
}

// List returns up to limit builds, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Build, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT build_id, output_dir, documents, terms, postings, blocks, block_size, artifacts, created_at
		   FROM index_builds ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var (
			b         Build
			artifacts []byte
		)
		if err := rows.Scan(&b.BuildID, &b.OutputDir, &b.Documents, &b.Terms, &b.Postings,
			&b.Blocks, &b.BlockSize, &artifacts, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		if err := json.Unmarshal(artifacts, &b.Artifacts); err != nil {
			s.logger.Warn("skipping build with unreadable artifacts", "build_id", b.BuildID, "error", err)
			continue
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
