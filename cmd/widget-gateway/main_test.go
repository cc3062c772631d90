// ABOUTME: Tests for the widget-gateway CLI plumbing
// ABOUTME: Covers logger setup, init output, token minting and health URLs

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/widget-gateway/internal/auth"
	"github.com/2389/widget-gateway/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "BASE_URL", "MCP_ALLOWED_HOSTS", "MCP_ALLOWED_ORIGINS", "WIDGET_DB_PATH", "WIDGET_GATEWAY_CONFIG"} {
		t.Setenv(k, "")
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.With("tool", "set_goal").WithGroup("call").Warn("slow", "ms", 1200)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "slow")
	assert.Contains(t, out, "tool=")
	assert.Contains(t, out, "set_goal")
	assert.Contains(t, out, "call.ms=")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("ready", "tools", 5)
	assert.Contains(t, buf.String(), `"msg":"ready"`)
	assert.Contains(t, buf.String(), `"tools":5`)
}

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conf", "gateway.yaml")

	answers := strings.Join([]string{
		path,
		"",                                 // http addr
		"https://widgets.example.com",      // base url
		"widgets.example.com, localhost:*", // allowed hosts
		"",                                 // db path
		"",                                 // widgets dir
		"y",                                // auth
		"https://auth.example.com",         // authorization servers
		"",                                 // tailscale
		"y",                                // rate limit
		"",                                 // metrics
		"debug",                            // log level
		"",                                 // log format
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(answers), &out, "unused.yaml"))
	assert.Contains(t, out.String(), "Config written to "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://widgets.example.com", cfg.Server.BaseURL)
	assert.Equal(t, []string{"widgets.example.com", "localhost:*"}, cfg.TransportSecurity.AllowedHosts)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "widget-gateway.db"), cfg.Database.Path)
	assert.True(t, cfg.Auth.Enabled)
	assert.GreaterOrEqual(t, len(cfg.Auth.JWTSecret), 32)
	assert.Equal(t, []string{"https://auth.example.com"}, cfg.Auth.AuthorizationServers)
	assert.False(t, cfg.Tailscale.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRunInit_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(path+"\nno\n"), &out, path))
	assert.Contains(t, out.String(), "Aborted.")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRunInit_EOFUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gateway.yaml")

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(""), &out, path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestTokenCommand(t *testing.T) {
	clearEnv(t)
	const secret = "cli-test-secret-0123456789abcdef!"
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  enabled: true\n  jwt_secret: \""+secret+"\"\n"), 0600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--config", path, "--sub", "alice", "--ttl", "1h"})
	require.NoError(t, root.Execute())

	principal, err := auth.NewJWTVerifier([]byte(secret), "").Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", principal)
}

func TestTokenCommand_Errors(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0600))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing subject", []string{"token", "--config", path}, "--sub"},
		{"bad ttl", []string{"token", "--config", path, "--sub", "a", "--ttl=-1h"}, "--ttl"},
		{"no secret", []string{"token", "--config", path, "--sub", "a"}, "jwt_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetArgs(tt.args)
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHealthURL(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://localhost:8000/health", healthURL(cfg))

	cfg.Server.HTTPAddr = "10.0.0.5:9000"
	assert.Equal(t, "http://10.0.0.5:9000/health", healthURL(cfg))
}
