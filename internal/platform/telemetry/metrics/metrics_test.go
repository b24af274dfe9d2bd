package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                                   "/",
		"/":                                  "/",
		"/status":                            "/status",
		"/parameters":                        "/parameters",
		"/parameters/impot_revenu.bareme":    "/parameters/:name",
		"/parameters/a.b/ancestors":          "/parameters/:name/ancestors",
		"/variables/csg":                     "/variables/:name",
		"/variables/csg/inputs/2021-01-01":   "/variables/:name/inputs/:date",
		"/simulations/calculate":             "/simulations",
		"/variables/csg/parameters/2021-1-1": "/variables/:name/parameters/:date",
	}
	for raw, want := range tests {
		if got := CanonicalPath(raw); got != want {
			t.Fatalf("CanonicalPath(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/status", "418"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/status", "418"))
	if after-before != 1 {
		t.Fatalf("request counter delta = %v, want 1", after-before)
	}
}

func TestRecordEngineCall(t *testing.T) {
	before := testutil.ToFloat64(engineCalls.WithLabelValues("ok"))
	RecordEngineCall("ok", 20*time.Millisecond)
	if got := testutil.ToFloat64(engineCalls.WithLabelValues("ok")) - before; got != 1 {
		t.Fatalf("engine counter delta = %v, want 1", got)
	}
}

func TestWSConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(wsConnections)
	release := WSConnectionOpened()
	if got := testutil.ToFloat64(wsConnections); got != before+1 {
		t.Fatalf("gauge = %v, want %v", got, before+1)
	}
	release()
	if got := testutil.ToFloat64(wsConnections); got != before {
		t.Fatalf("gauge = %v, want %v", got, before)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordRunCacheLookup("csg_pop", true)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "leximpact_runs_cache_lookups_total") {
		t.Fatal("expected run cache metric in exposition")
	}
}
