package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func requestCount(t *testing.T, method, route, status string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := httpRequestDuration.GetMetricWithLabelValues(method, route, status)
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Delete("/documents/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/documents", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[]}`))
	})

	before := requestCount(t, "DELETE", "/documents/{name}", "204")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/documents/report.pdf", http.NoBody))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := requestCount(t, "DELETE", "/documents/{name}", "204"); got != before+1 {
		t.Errorf("request count = %d, want %d", got, before+1)
	}

	bytesBefore := testutil.ToFloat64(httpResponseBytes.WithLabelValues("/documents"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/documents", http.NoBody))
	if got := testutil.ToFloat64(httpResponseBytes.WithLabelValues("/documents")) - bytesBefore; got != 16 {
		t.Errorf("response bytes = %v, want 16", got)
	}

	if v := testutil.ToFloat64(httpInFlight); v != 0 {
		t.Errorf("in-flight = %v after requests finished", v)
	}
}

func TestMiddleware_Statuses(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/conflict", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	tests := []struct {
		path   string
		route  string
		status string
	}{
		{"/ok", "/ok", "200"},
		{"/conflict", "/conflict", "409"},
		{"/nowhere", unmatchedRoute, "404"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			before := requestCount(t, "GET", tc.route, tc.status)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, http.NoBody))
			if got := requestCount(t, "GET", tc.route, tc.status); got != before+1 {
				t.Errorf("count for %s %s = %d, want %d", tc.route, tc.status, got, before+1)
			}
		})
	}
}

func TestEmbedCall(t *testing.T) {
	call := StartEmbed("test", "m")
	call.Done(3, 5)
	StartEmbed("test", "m").Fail(ReasonShortResponse)

	if v := testutil.ToFloat64(embeddingRequestsTotal.WithLabelValues("test", "m", "success")); v != 1 {
		t.Errorf("success = %v, want 1", v)
	}
	if v := testutil.ToFloat64(embeddingTokensTotal.WithLabelValues("test", "m", "total")); v != 5 {
		t.Errorf("total tokens = %v, want 5", v)
	}
	if v := testutil.ToFloat64(embeddingErrorsTotal.WithLabelValues("test", "m", ReasonShortResponse)); v != 1 {
		t.Errorf("errors = %v, want 1", v)
	}
}

func TestRegisterAll_Idempotent(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("second registration panicked: %v", r)
		}
	}()
	RegisterAll()
	RegisterAll()
}
