package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ObserveHTTP("POST", "/api/wormpicker", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `http_requests_total{method="POST",route="/api/wormpicker",status="200"}`) {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestLayerOutcome_CountsPerOutcome(t *testing.T) {
	before := testutil.ToFloat64(layerOutcomes.WithLabelValues("service_error"))
	IncLayerOutcome("service_error")
	IncLayerOutcome("service_error")
	after := testutil.ToFloat64(layerOutcomes.WithLabelValues("service_error"))
	if after-before != 2 {
		t.Fatalf("service_error delta=%v want 2", after-before)
	}
}

func TestInit_DisabledStopsRecording(t *testing.T) {
	Init(nil, false)
	t.Cleanup(func() { Init(nil, true) })

	before := testutil.ToFloat64(cacheResults.WithLabelValues("hit"))
	AddCacheHits(5)
	if got := testutil.ToFloat64(cacheResults.WithLabelValues("hit")); got != before {
		t.Fatalf("recorded while disabled: before=%v after=%v", before, got)
	}
}

func TestInit_RegistersWithCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	ObserveUpstreamLatency("get_coverage", 0.02)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "upstream_latency_seconds" {
			found = true
		}
	}
	if !found {
		t.Fatal("upstream_latency_seconds not registered in custom registry")
	}
}
