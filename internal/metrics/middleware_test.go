package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const statusRoute = "/v1/accounts/{accountId}/status"

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get(statusRoute, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	for _, id := range []string{
		"6f1c2f4e-9a3b-4c55-8d7e-2b1a0c9d8e7f",
		"0b9e3d1a-4c2f-4e8b-9a7d-5f6e1c2b3a4d",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts/"+id+"/status", http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, statusRoute, "200"))
	if got < 2 {
		t.Errorf("expected both account ids under one route label, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/accounts/{accountId}/chapters", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	r.Post("/v1/accounts/{accountId}/credits/charge", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	tests := []struct {
		method, path, route, status string
	}{
		{http.MethodPost, "/v1/accounts/a/chapters", "/v1/accounts/{accountId}/chapters", "429"},
		{http.MethodPost, "/v1/accounts/a/credits/charge", "/v1/accounts/{accountId}/credits/charge", "402"},
		{http.MethodGet, "/health", "/health", "503"},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			r.ServeHTTP(httptest.NewRecorder(), req)

			if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status)); v < 1 {
				t.Errorf("expected requests_total{%s %s %s} >= 1, got %f", tc.method, tc.route, tc.status, v)
			}
			rejected := testutil.ToFloat64(httpRejectionsTotal.WithLabelValues(tc.route, tc.status))
			if wantRejected := tc.status != "503"; wantRejected != (rejected >= 1) {
				t.Errorf("rejections{%s %s} = %f", tc.route, tc.status, rejected)
			}
		})
	}
}

func TestMiddleware_InFlightSettles(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if v := testutil.ToFloat64(httpInFlight); v < 1 {
			t.Errorf("in-flight during request = %f", v)
		}
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(httpInFlight)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if after := testutil.ToFloat64(httpInFlight); after != before {
		t.Errorf("in-flight gauge did not settle: before=%f after=%f", before, after)
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unknown", "404")); v < 1 {
		t.Errorf("expected unmatched request under \"unknown\", got %f", v)
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(""); got != "unknown" {
		t.Errorf("normalizePath(\"\") = %q", got)
	}
	if got := normalizePath(statusRoute); got != statusRoute {
		t.Errorf("normalizePath(%q) = %q", statusRoute, got)
	}
}

func TestDecision(t *testing.T) {
	if Decision(true) != "admitted" || Decision(false) != "denied" {
		t.Error("unexpected decision labels")
	}
}

func TestRegisterQuotaMetrics_Idempotent(t *testing.T) {
	RegisterQuotaMetrics()
	RegisterQuotaMetrics()

	QuotaDecisionsTotal.WithLabelValues(GateChapters, "free", Decision(false)).Inc()
	if v := testutil.ToFloat64(QuotaDecisionsTotal.WithLabelValues(GateChapters, "free", "denied")); v < 1 {
		t.Errorf("expected denied decision counted, got %f", v)
	}
}
