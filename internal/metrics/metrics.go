package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	BacktestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs by outcome",
		},
		[]string{"status"},
	)

	PriceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_fetch_duration_seconds",
			Help:    "Price series fetch duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	AdvisoryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_requests_total",
			Help: "Advisory requests by outcome",
		},
		[]string{"status"},
	)
)
