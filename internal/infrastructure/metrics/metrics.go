// Package metrics exposes Prometheus instrumentation for the progression
// engine. The HTTP server and the event bus report directly; domain-level
// counters are derived from published events via EventRecorder, so command
// and query handlers stay free of instrumentation concerns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// Metrics holds all collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	interactionsTracked  *prometheus.CounterVec
	stageAdvances        *prometheus.CounterVec
	badgesAwarded        *prometheus.CounterVec
	streaksBroken        prometheus.Counter
	eventsPublished      *prometheus.CounterVec
	eventHandlerDuration *prometheus.HistogramVec
	httpRequestDuration  *prometheus.HistogramVec
}

// New creates a Metrics value with its own registry, including the standard
// Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		interactionsTracked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "interactions_tracked_total",
			Help:      "Behavioral interactions recorded, by interaction type.",
		}, []string{"interaction_type"}),

		stageAdvances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "stage_advances_total",
			Help:      "Learners classified into a higher stage, by the new stage.",
		}, []string{"stage"}),

		badgesAwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "badges_awarded_total",
			Help:      "Badges granted, by badge type.",
		}, []string{"badge_type"}),

		streaksBroken: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "streaks_broken_total",
			Help:      "Daily streaks reset after a gap of more than one day.",
		}),

		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "events_published_total",
			Help:      "Domain events published on the bus, by event type.",
		}, []string{"event_type"}),

		eventHandlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "event_handler_duration_seconds",
			Help:      "Domain event handler execution time, by event type and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type", "result"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "progression",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route, method and status class.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route", "method", "status"}),
	}
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EventRecorder returns a handler that derives domain counters from events
// on the bus. Subscribe it to all event types; it never fails.
func (m *Metrics) EventRecorder() shared.EventHandler {
	return func(event shared.Event) error {
		switch e := event.(type) {
		case shared.InteractionRecordedEvent:
			m.interactionsTracked.WithLabelValues(e.InteractionType).Inc()
		case shared.StageAdvancedEvent:
			m.stageAdvances.WithLabelValues(e.NewStage).Inc()
		case shared.BadgeUnlockedEvent:
			m.badgesAwarded.WithLabelValues(e.BadgeType).Inc()
		case shared.DailyStreakBrokenEvent:
			m.streaksBroken.Inc()
		}
		return nil
	}
}

// ObserveEventPublished counts a published domain event.
func (m *Metrics) ObserveEventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// ObserveEventHandler records a handler execution.
func (m *Metrics) ObserveEventHandler(eventType string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventHandlerDuration.WithLabelValues(eventType, result).Observe(d.Seconds())
}

// ObserveHTTPRequest records a served HTTP request.
func (m *Metrics) ObserveHTTPRequest(route, method, status string, d time.Duration) {
	m.httpRequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}
