package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_turns_completed_total",
		Help: "Turns that finished with a delivered result, by modality.",
	}, []string{"modality"})

	turnsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_turns_failed_total",
		Help: "Turns that ended with an apology, by modality.",
	}, []string{"modality"})

	generationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "companion_generation_duration_seconds",
		Help:    "Wall time of backend generation per turn, by modality.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"modality"})
)
