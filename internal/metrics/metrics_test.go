package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New()
	m.Transition("order", "deliver")
	m.Transition("order", "deliver")
	m.Accepted(decimal.RequireFromString("12.5"))
	m.ObserveRequest("POST /orders", http.StatusCreated, 5*time.Millisecond)
	m.Published("orders", false)

	body := scrape(t, m)
	assert.Contains(t, body, `fieldops_status_transitions_total{entity="order",event="deliver"} 2`)
	assert.Contains(t, body, `fieldops_wallet_accepted_amount_total 12.5`)
	assert.Contains(t, body, `fieldops_http_requests_total{code="201",route="POST /orders"} 1`)
	assert.Contains(t, body, `fieldops_outbox_published_total{result="error",topic="orders"} 1`)
}
