package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/widget-gateway/internal/mcp"
)

var _ mcp.Observer = (*Metrics)(nil)

func TestObserveToolCall(t *testing.T) {
	m := New()
	m.ObserveToolCall("set_goal", mcp.OutcomeOK, 20*time.Millisecond)
	m.ObserveToolCall("set_goal", mcp.OutcomeOK, 30*time.Millisecond)
	m.ObserveToolCall("set_goal", mcp.OutcomeIsError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("set_goal", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("set_goal", "is_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.toolDuration))
}

func TestObserveResourceRead(t *testing.T) {
	m := New()
	m.ObserveResourceRead("ui://widget/calendar-widget.html", mcp.OutcomeOK)
	m.ObserveResourceRead("ui://widget/missing.html", mcp.KindResourceNotFound)

	assert.Equal(t, 2, testutil.CollectAndCount(m.resourceReads))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.resourceReads.WithLabelValues("ui://widget/missing.html", "resource_not_found")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveToolCall("get_goal", mcp.OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `widget_gateway_tool_calls_total{outcome="ok",tool="get_goal"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
