package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	datasetsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loginlens",
		Name:      "datasets_ingested_total",
		Help:      "Datasets successfully parsed and normalized.",
	})
	eventsScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loginlens",
		Name:      "events_scored_total",
		Help:      "Canonical events run through the scoring engine.",
	})
	alertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loginlens",
		Name:      "alerts_raised_total",
		Help:      "Alerts produced by derivation, by severity.",
	}, []string{"severity"})
	detectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loginlens",
		Name:      "detect_duration_seconds",
		Help:      "Wall time of a full scoring plus derivation run.",
		Buckets:   prometheus.DefBuckets,
	})
)
