// Package telemetry exposes playback and HTTP metrics for Prometheus.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/arbor/pkg/domain"
)

const namespace = "arbor"

// Metrics holds the collectors of one process. Each Metrics owns its
// registry so tests and embedded engines never collide.
type Metrics struct {
	registry *prometheus.Registry

	scenes      *prometheus.CounterVec
	texts       *prometheus.CounterVec
	choices     *prometheus.CounterVec
	endings     *prometheus.CounterVec
	stalls      *prometheus.CounterVec
	denied      *prometheus.CounterVec
	units       *prometheus.CounterVec
	loading     *prometheus.CounterVec
	sessions    prometheus.Gauge
	requests    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scenes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_entered_total",
			Help:      "Scene nodes presented to readers.",
		}, []string{"unit_id"}),
		texts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "texts_revealed_total",
			Help:      "Dialogue and narration units fully revealed.",
		}, []string{"unit_id"}),
		choices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "choices_offered_total",
			Help:      "Choice prompts offered to readers.",
		}, []string{"unit_id", "node_id"}),
		endings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endings_total",
			Help:      "Readings that reached an ending, by ending type.",
		}, []string{"unit_id", "ending_type"}),
		stalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalls_total",
			Help:      "Readings that stopped on a graph defect.",
		}, []string{"unit_id"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Episode boundaries refused by the entitlement check.",
		}, []string{"unit_id"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_transitions_total",
			Help:      "Episode boundaries crossed.",
		}, []string{"unit_id"}),
		loading: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loading_waits_total",
			Help:      "Boundaries where the reader waited for the next unit.",
		}, []string{"unit_id"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Reading sessions currently open.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.scenes, m.texts, m.choices, m.endings, m.stalls, m.denied,
		m.units, m.loading, m.sessions, m.requests, m.reqDuration,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns playback hooks that record session activity.
func (m *Metrics) Hooks() domain.PlaybackHooks {
	return domain.PlaybackHooks{
		OnSceneChanged: func(_ context.Context, e *domain.SceneEvent) {
			m.scenes.WithLabelValues(e.UnitID).Inc()
		},
		OnContentRevealed: func(_ context.Context, e *domain.ContentEvent) {
			m.texts.WithLabelValues(e.UnitID).Inc()
		},
		OnChoicesAvailable: func(_ context.Context, e *domain.ChoiceEvent) {
			m.choices.WithLabelValues(e.UnitID, e.NodeID).Inc()
		},
		OnEnded: func(_ context.Context, e *domain.EndedEvent) {
			kind := "none"
			if e.Ending != nil {
				kind = string(e.Ending.EndingType)
			}
			m.endings.WithLabelValues(e.UnitID, kind).Inc()
		},
		OnStalled: func(_ context.Context, e *domain.StalledEvent) {
			m.stalls.WithLabelValues(e.UnitID).Inc()
		},
		OnAccessDenied: func(_ context.Context, e *domain.UnitEvent) {
			m.denied.WithLabelValues(e.UnitID).Inc()
		},
		OnUnitChanged: func(_ context.Context, e *domain.UnitEvent) {
			m.units.WithLabelValues(e.UnitID).Inc()
		},
		OnLoading: func(_ context.Context, e *domain.UnitEvent) {
			m.loading.WithLabelValues(e.UnitID).Inc()
		},
	}
}

// SessionOpened records a new live session.
func (m *Metrics) SessionOpened() { m.sessions.Inc() }

// SessionClosed records a closed live session.
func (m *Metrics) SessionClosed() { m.sessions.Dec() }

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.reqDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
