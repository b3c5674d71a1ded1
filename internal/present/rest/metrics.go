package rest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bankDetailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinjaman_bank_details_total",
		Help: "Bank-details submissions by outcome",
	}, []string{"outcome"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pinjaman_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
