package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movienight_catalog_requests_total",
		Help: "TMDB requests by kind and outcome.",
	}, []string{"kind", "outcome"})

	catalogFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movienight_catalog_fallbacks_total",
		Help: "Responses served from the offline dataset.",
	}, []string{"kind"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movienight_session_transitions_total",
		Help: "Collaboration session lifecycle events.",
	}, []string{"event"})

	presenceSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movienight_presence_swept_total",
		Help: "Stale presence records removed by the sweeper.",
	})
)
