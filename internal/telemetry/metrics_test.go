package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestHooks_CountPlayback(t *testing.T) {
	m := New()
	h := m.Hooks()
	ctx := context.Background()
	base := domain.EventBase{UnitID: "ep1"}

	h.OnSceneChanged(ctx, &domain.SceneEvent{EventBase: base})
	h.OnContentRevealed(ctx, &domain.ContentEvent{EventBase: base})
	h.OnContentRevealed(ctx, &domain.ContentEvent{EventBase: base})
	h.OnChoicesAvailable(ctx, &domain.ChoiceEvent{EventBase: base, NodeID: "ask"})
	h.OnEnded(ctx, &domain.EndedEvent{EventBase: base, Ending: &domain.EndingPayload{EndingType: domain.EndingGood}})
	h.OnEnded(ctx, &domain.EndedEvent{EventBase: base})
	h.OnStalled(ctx, &domain.StalledEvent{EventBase: base})
	h.OnAccessDenied(ctx, &domain.UnitEvent{EventBase: domain.EventBase{UnitID: "ep2"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenes.WithLabelValues("ep1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.texts.WithLabelValues("ep1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.choices.WithLabelValues("ep1", "ask")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.endings.WithLabelValues("ep1", "GOOD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.endings.WithLabelValues("ep1", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stalls.WithLabelValues("ep1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.denied.WithLabelValues("ep2")))
}

func TestSessionsGauge(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `arbor_http_requests_total{code="200",method="GET",route="/health"} 1`), body)
	assert.Contains(t, body, "arbor_http_request_duration_seconds_bucket")
}
