package metrics

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBuildFinished(t *testing.T) {
	m := New()
	m.BuildFinished(nil)
	m.BuildFinished(errors.New("boom"))
	m.BuildFinished(nil)
	if got := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success builds = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed builds = %v, want 1", got)
	}
	if testutil.ToFloat64(m.LastSuccessSeconds) == 0 {
		t.Error("last success timestamp not set")
	}
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// two instances must not collide on registration
	a, b := New(), New()
	a.DocumentsTotal.Add(3)
	if testutil.ToFloat64(b.DocumentsTotal) != 0 {
		t.Error("metrics instances share state")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveStage("merge", 1500*time.Millisecond)
	m.PostingsTotal.Add(42)
	path := filepath.Join(t.TempDir(), "build.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"index_postings_total 42",
		`index_build_stage_duration_seconds_count{stage="merge"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.TermsTotal.Add(7)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "index_terms_total 7") {
		t.Error("scrape output missing index_terms_total")
	}
}
