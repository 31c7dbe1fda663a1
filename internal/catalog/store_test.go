package catalog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/postgres"
)

// openStore connects to the database named by SP_TEST_POSTGRES_DSN.
func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skipf("SP_TEST_POSTGRES_DSN not set; skipping catalog tests")
	}
	client, err := postgres.Open(dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	s := NewStore(client, "/var/lib/index")
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id := fmt.Sprintf("test-%d", time.Now().UnixNano())
	m := &manifest.Manifest{
		BuildID:   id,
		CreatedAt: time.Now().UTC().Add(time.Hour),
		Documents: 2,
		Terms:     2,
		Postings:  3,
		Blocks:    2,
		BlockSize: 64,
		Artifacts: []manifest.Artifact{{Name: manifest.InvertedFile, Size: 10, XXHash64: "00000000deadbeef"}},
	}
	if err := s.Notify(ctx, m); err != nil {
		t.Fatal(err)
	}
	// recording the same build again is a no-op
	if err := s.Notify(ctx, m); err != nil {
		t.Fatal(err)
	}
	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.BuildID != id || latest.Postings != 3 || latest.OutputDir != "/var/lib/index" {
		t.Fatalf("Latest = %+v", latest)
	}
	if len(latest.Artifacts) != 1 || latest.Artifacts[0].XXHash64 != "00000000deadbeef" {
		t.Errorf("artifacts = %+v", latest.Artifacts)
	}
	if _, err := s.db.DB.ExecContext(ctx, `DELETE FROM index_builds WHERE build_id = $1`, id); err != nil {
		t.Errorf("cleanup: %v", err)
	}
}
