package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pinjaman_ledger_call_duration_seconds",
		Help:    "Latency of loan manager calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	ledgerCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinjaman_ledger_call_errors_total",
		Help: "Failed loan manager calls",
	}, []string{"method"})

	draftSubmitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pinjaman_draft_submit_duration_seconds",
		Help:    "Latency of bank-details submissions to the draft store",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)
