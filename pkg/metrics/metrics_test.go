package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	Analyses.WithLabelValues("complete").Inc()
	BackendFallbacks.WithLabelValues("summary").Inc()
	CacheInvalidations.Inc()
	RateLimitRemaining.Set(4321)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		`riskboard_analyses_total{outcome="complete"}`,
		`riskboard_backend_fallbacks_total{endpoint="summary"}`,
		"riskboard_events_invalidations_total",
		"riskboard_ratelimit_remaining 4321",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
