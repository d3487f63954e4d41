package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveStoreCall("get", "ok", 3*time.Millisecond)
	m.FeedDegraded("block_filter")
	m.ModerationDecision("fail_open")
	m.PushDelivery("expo", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `scoop_store_calls_total{op="get",result="ok"} 1`)
	assert.Contains(t, body, `scoop_feed_degraded_total{step="block_filter"} 1`)
	assert.Contains(t, body, `scoop_moderation_decisions_total{decision="fail_open"} 1`)
	assert.Contains(t, body, `scoop_push_deliveries_total{provider="expo",result="ok"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FeedDegraded("x")
		m.ObserveStoreCall("get", "ok", time.Millisecond)
	})
}
