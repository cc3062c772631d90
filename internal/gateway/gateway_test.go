// ABOUTME: End-to-end tests for the gateway HTTP surface
// ABOUTME: Drives /mcp, /health, /metrics and the metadata route through the real router

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/widget-gateway/internal/assets"
	"github.com/2389/widget-gateway/internal/auth"
	"github.com/2389/widget-gateway/internal/config"
	"github.com/2389/widget-gateway/internal/resources"
)

const testSecret = "gateway-test-secret-0123456789abcdef"

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = ":memory:"
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	gw, err := New(cfg, nil, WithClock(fixedClock))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = gw.Shutdown(context.Background())
	})
	return gw
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code int `json:"code"`
		Data struct {
			Kind string `json:"kind"`
		} `json:"data"`
	} `json:"error"`
}

func rpc(t *testing.T, h http.Handler, token, body string) rpcResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res rpcResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	rr := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 5.0, body["tools"])
}

func TestGoalWidgetFlow(t *testing.T) {
	gw := newTestGateway(t, testConfig())
	h := gw.Handler()

	res := rpc(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"set_goal","arguments":{"title":"Run a marathon","targetDate":"2025-03-31"}}}`)
	require.Nil(t, res.Error)

	var call struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StructuredContent map[string]any `json:"structuredContent"`
		Meta              map[string]any `json:"_meta"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &call))
	assert.Equal(t, `Goal "Run a marathon" set! 30 day journey, 30 days remaining.`, call.Content[0].Text)
	assert.Equal(t, assets.CalendarWidgetURI, call.Meta["openai/outputTemplate"])
	goal := call.StructuredContent["goal"].(map[string]any)
	assert.Equal(t, "2025-03-31", goal["targetDate"])

	res = rpc(t, h, "", `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"`+assets.CalendarWidgetURI+`"}}`)
	require.Nil(t, res.Error)
	var read struct {
		Contents []struct {
			URI      string `json:"uri"`
			MIMEType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &read))
	require.Len(t, read.Contents, 1)
	assert.Equal(t, resources.WidgetMIMEType, read.Contents[0].MIMEType)
	assert.Contains(t, read.Contents[0].Text, "openai:set_globals")

	res = rpc(t, h, "", `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_goal"}}`)
	require.Nil(t, res.Error)
	assert.Contains(t, string(res.Result), "Run a marathon")
}

func TestMetricsEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig())
	h := gw.Handler()

	rpc(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_goal"}}`)
	rpc(t, h, "", `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"missing"}}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `widget_gateway_tool_calls_total{outcome="ok",tool="get_goal"} 1`)
	assert.Contains(t, body, `widget_gateway_tool_calls_total{outcome="tool_not_found",tool="missing"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	gw := newTestGateway(t, cfg)

	rr := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BaseURL = "https://widgets.example.com"
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.AuthorizationServers = []string{"https://auth.example.com"}
	gw := newTestGateway(t, cfg)
	h := gw.Handler()

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t,
		`Bearer resource_metadata="https://widgets.example.com/.well-known/oauth-protected-resource"`,
		rr.Header().Get("WWW-Authenticate"))

	token, err := auth.NewJWTVerifier([]byte(testSecret), "").Generate("alice", time.Hour)
	require.NoError(t, err)
	res := rpc(t, h, token, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Nil(t, res.Error)
	assert.Contains(t, string(res.Result), "set_goal")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, auth.MetadataPath, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var md map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &md))
	assert.Equal(t, "https://widgets.example.com/mcp", md["resource"])
	assert.Equal(t, []any{"https://auth.example.com"}, md["authorization_servers"])
}

func TestTransportSecurityWired(t *testing.T) {
	cfg := testConfig()
	cfg.TransportSecurity.AllowedHosts = []string{"widgets.example.com"}
	gw := newTestGateway(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	req.Host = "rebind.attacker.example"
	rr := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMisdirectedRequest, rr.Code)

	// Health is outside the MCP endpoint and stays reachable.
	rr = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitWired(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 0.001
	cfg.RateLimit.Burst = 1
	gw := newTestGateway(t, cfg)
	h := gw.Handler()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_goal"}}`
	require.Nil(t, rpc(t, h, "", body).Error)

	res := rpc(t, h, "", body)
	require.NotNil(t, res.Error)
	assert.Equal(t, -32000, res.Error.Code)
	assert.Equal(t, "rate_limited", res.Error.Data.Kind)
}

func TestWidgetsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir, "main.html", "<!DOCTYPE html><p>custom</p>"))

	cfg := testConfig()
	cfg.Widgets.Dir = dir
	gw := newTestGateway(t, cfg)

	entry, ok := gw.Resources().Get("ui://widget/main.html")
	require.True(t, ok)
	assert.True(t, entry.IsWidget())
	_, ok = gw.Resources().Get(assets.CalendarWidgetURI)
	assert.False(t, ok)
}

func writeFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}

func TestNew_BadWidgetsDir(t *testing.T) {
	cfg := testConfig()
	cfg.Widgets.Dir = "/definitely/not/here"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	gw, err := New(testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDetermineMCPEndpoint(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://:8000/mcp", determineMCPEndpoint(cfg))

	cfg.Tailscale.Enabled = true
	cfg.Tailscale.Funnel = true
	assert.Equal(t, "https://widget-gateway/mcp", determineMCPEndpoint(cfg))

	cfg.Server.BaseURL = "https://widgets.example.com/"
	assert.Equal(t, "https://widgets.example.com/mcp", determineMCPEndpoint(cfg))
}
