package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newImportRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/dataimport", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("command") {
		case "full-import", "delta-import":
			w.WriteHeader(http.StatusAccepted)
		case "", "status", "abort":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get("/metrics", func(http.ResponseWriter, *http.Request) {})
	return r
}

func TestMiddleware_LabelsImportCommands(t *testing.T) {
	h := newImportRouter()

	tests := []struct {
		target  string
		command string
		status  string
	}{
		{"/dataimport?command=full-import&entity=orders", "full-import", "202"},
		{"/dataimport?command=delta-import&entity=orders", "delta-import", "202"},
		{"/dataimport?command=status", "status", "200"},
		{"/dataimport", "status", "200"},
		{"/dataimport?command=abort&entity=orders", "abort", "200"},
		{"/dataimport?command=reload-config", "invalid", "400"},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			counter := httpRequestsTotal.WithLabelValues("GET", "/dataimport", tc.command, tc.status)
			before := testutil.ToFloat64(counter)

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.target, http.NoBody))

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("requests_total delta = %v, want 1", got)
			}
		})
	}
}

func TestMiddleware_OtherRoutesHaveNoCommand(t *testing.T) {
	h := newImportRouter()

	health := httpRequestsTotal.WithLabelValues("GET", "/health", "", "503")
	metricsRoute := httpRequestsTotal.WithLabelValues("GET", "/metrics", "", "200")
	beforeHealth, beforeMetrics := testutil.ToFloat64(health), testutil.ToFloat64(metricsRoute)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health?command=abort", http.NoBody))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if got := testutil.ToFloat64(health) - beforeHealth; got != 1 {
		t.Errorf("health delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metricsRoute) - beforeMetrics; got != 1 {
		t.Errorf("metrics delta = %v, want 1 (an empty response counts as 200)", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	h := newImportRouter()
	counter := httpRequestsTotal.WithLabelValues("GET", "unmatched", "", "404")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/solr/dataimport", http.NoBody))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unmatched delta = %v, want 1", got)
	}
}

func TestCommandLabel(t *testing.T) {
	for in, want := range map[string]string{
		"":             "status",
		"full-import":  "full-import",
		"abort":        "abort",
		"FULL-IMPORT":  "invalid",
		"drop-indexes": "invalid",
	} {
		if got := commandLabel(in); got != want {
			t.Errorf("commandLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterHTTPMetrics_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
}
