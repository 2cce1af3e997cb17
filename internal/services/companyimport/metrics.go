package companyimport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	rowsTotal     *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "company_import",
			Name:      "rows_total",
			Help:      "Rows processed by bulk company uploads, by outcome.",
		}, []string{"outcome"}),
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "company_import",
			Name:      "runs_total",
			Help:      "Validation and bulk-upload requests, by kind and result.",
		}, []string{"kind", "result"}),
		batchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "company_import",
			Name:      "batch_commit_seconds",
			Help:      "Latency of committing one batch of company records.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
