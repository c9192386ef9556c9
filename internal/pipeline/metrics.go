package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tinytales_segment_generation_attempts_total",
		Help: "Segment generation attempts by outcome.",
	}, []string{"outcome"})

	fallbacksServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tinytales_segment_fallbacks_total",
		Help: "Segments served with fallback choices after exhausting retries.",
	})

	endingsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tinytales_story_endings_total",
		Help: "Segments accepted as story endings.",
	})
)
