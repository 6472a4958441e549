package observability_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/domain"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	if !strings.Contains(out, "rates_http_requests_total") {
		t.Fatalf("expected rates_http_requests_total in output")
	}
}

func TestObserveCommit(t *testing.T) {
	reg := observability.InitRegistry()
	observability.ObserveCommit("conflict", 1, 0)
	observability.ObserveCommit("ok", 2, 3)

	rr := httptest.NewRecorder()
	observability.MetricsHandler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	out := rr.Body.String()
	for _, want := range []string{
		`rates_commits_total{outcome="conflict"}`,
		`rates_commits_total{outcome="ok"}`,
		"rates_commit_attempts_bucket",
		"rates_splits_total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":         nil,
		"conflict":   &domain.ConflictError{},
		"validation": &domain.ValidationError{},
		"not_found":  fmt.Errorf("edit: %w", domain.ErrNotFound),
		"storage":    &domain.StorageError{Op: "commit", Err: errors.New("boom")},
		"error":      errors.New("other"),
	}
	for want, err := range cases {
		if got := observability.Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %s, want %s", err, got, want)
		}
	}
}
