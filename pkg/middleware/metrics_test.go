package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/metrics"
)

func TestMetricsRecordsStatus(t *testing.T) {
	m := metrics.New()
	hs := Wrap(map[string]http.Handler{
		"/readyz": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
		"/healthz": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}),
	}, Metrics(m))

	for _, path := range []string{"/readyz", "/healthz", "/healthz"} {
		rec := httptest.NewRecorder()
		hs[path].ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/readyz", "503")); got != 1 {
		t.Errorf("readyz 503 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/healthz", "200")); got != 2 {
		t.Errorf("healthz 200 = %v, want 2", got)
	}
}
