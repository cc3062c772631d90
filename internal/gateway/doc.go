// Package gateway is the composition root of widget-gateway.
//
// # Overview
//
// New wires the SQLite store, the builtin tool packs, the widget resources
// (embedded or from widgets.dir), the MCP server and the optional metrics,
// rate limiting and bearer auth into one chi router. Run serves it on a TCP
// address or a tailnet listener and shuts down gracefully on cancel.
//
// # HTTP Routes
//
//	POST /mcp                                   MCP JSON-RPC endpoint
//	GET  /health                                liveness with registry counts
//	GET  /metrics                               Prometheus exposition (metrics.enabled)
//	GET  /.well-known/oauth-protected-resource  RFC 9728 metadata (auth.enabled)
//
// # Tailscale
//
// With tailscale.enabled the gateway joins the tailnet through tsnet and
// listens on :80, or on :443 through Funnel when tailscale.funnel is set so
// public chat hosts can reach it. The auth key comes from tailscale.auth_key
// or TS_AUTHKEY.
package gateway
