package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index-builder/pkg/errors"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func up() Pinger   { return pingerFunc(func(context.Context) error { return nil }) }
func down() Pinger { return pingerFunc(func(context.Context) error { return errors.New("connection refused") }) }

func TestPreflightAllUp(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("kafka", PingCheck(up()))
	c.Register("redis", PingCheck(up()))
	if err := c.Preflight(context.Background()); err != nil {
		t.Errorf("Preflight = %v", err)
	}
}

func TestPreflightReportsDownDependency(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("kafka", PingCheck(up()))
	c.Register("postgres", PingCheck(down()))
	err := c.Preflight(context.Background())
	if !errors.Is(err, apperrors.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
	if apperrors.StageOf(err) != apperrors.StagePreflight || !strings.Contains(err.Error(), "postgres (connection refused)") {
		t.Errorf("unexpected error %v", err)
	}
	if apperrors.ExitCode(err) != apperrors.ExitDependency {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
}

func TestRunHonoursTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	c.Register("slow", PingCheck(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))
	report := c.Run(context.Background())
	if report.Status != StatusDown {
		t.Errorf("status = %s", report.Status)
	}
}

func TestEmptyCheckerIsUp(t *testing.T) {
	c := NewChecker(0)
	if c.Len() != 0 || c.Run(context.Background()).Status != StatusUp {
		t.Error("empty checker should report up")
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("redis", PingCheck(down()))
	rec := httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	rec = httptest.NewRecorder()
	c.LiveHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Errorf("live status = %d", rec.Code)
	}
}
