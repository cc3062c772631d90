// Package mcp implements the Model Context Protocol endpoint that chat hosts
// use to discover and call widget tools and to fetch widget HTML.
//
// # Protocol
//
// JSON-RPC 2.0 over a single POST /mcp endpoint (Streamable HTTP, JSON
// response mode). The server is session-less: no Mcp-Session-Id is issued or
// required, and any replica can answer any request.
//
// Supported methods: initialize, ping, tools/list, tools/call,
// resources/list, resources/templates/list and resources/read.
// Notifications are accepted with HTTP 202.
//
// # Tool results
//
// A tools/call result carries structuredContent for the widget, a text
// fallback and the invocation metadata under _meta:
//
//	{
//	  "content": [{"type": "text", "text": "Goal \"Ship\" set! ..."}],
//	  "structuredContent": {"goal": {...}},
//	  "_meta": {
//	    "openai/outputTemplate": "ui://widget/calendar-widget.html",
//	    "openai/widgetAccessible": true
//	  }
//	}
//
// # Errors
//
// Failures are JSON-RPC error objects whose data.kind classifies them:
// tool_not_found and invalid_arguments (-32602), handler_failed (-32603),
// resource_not_found (-32002) and rate_limited (-32000).
//
// # Architecture
//
//   - Dispatcher: transport-independent core over the tool and resource registries
//   - Server: HTTP adapter with bearer auth, transport security and rate limiting
//   - TransportSecurity: Host/Origin allow-lists against DNS rebinding
package mcp
