package metrics

import "github.com/prometheus/client_golang/prometheus"

// Import pipeline Prometheus metrics.
var (
	ImportDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Name:      "import_documents_total",
			Help:      "Documents processed by import runs",
		},
		[]string{"entity", "outcome"}, // fetched / indexed / skipped / failed
	)

	ImportRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Name:      "import_runs_total",
			Help:      "Finished import runs",
		},
		[]string{"entity", "command", "status"},
	)

	ImportRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docflat",
			Name:      "import_run_duration_seconds",
			Help:      "Import run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"entity", "command"},
	)

	ImportRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docflat",
			Name:      "import_running",
			Help:      "1 while an import run is active for the entity",
		},
		[]string{"entity"},
	)

	DateParseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Name:      "date_parse_failures_total",
			Help:      "Date values that could not be reparsed and were nulled",
		},
		[]string{"entity", "field"},
	)
)

var importMetricsRegistered bool

// RegisterImportMetrics registers import metrics. Must be called once from main.
func RegisterImportMetrics() {
	if importMetricsRegistered {
		return
	}
	prometheus.MustRegister(ImportDocumentsTotal)
	prometheus.MustRegister(ImportRunsTotal)
	prometheus.MustRegister(ImportRunDuration)
	prometheus.MustRegister(ImportRunning)
	prometheus.MustRegister(DateParseFailuresTotal)
	importMetricsRegistered = true
}
