package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "washd_actions_total",
		Help: "User actions by operation and outcome.",
	}, []string{"op", "outcome"})

	conflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "washd_write_conflicts_total",
		Help: "Conditional writes rejected as stale.",
	})
)

// RegisterMetrics registers the Prometheus handler in the provided mux.
func RegisterMetrics(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
