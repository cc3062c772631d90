// Package config handles configuration loading for widget-gateway.
//
// # Configuration File
//
// The file path comes from the WIDGET_GATEWAY_CONFIG environment variable,
// falling back to widget-gateway/gateway.yaml under the user config
// directory. Files ending in .toml are parsed as TOML; everything else as
// YAML. A missing file is not an error for `serve`: Default applies.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${WIDGET_JWT_SECRET}"
//
// # Environment Overrides
//
// These variables win over file values:
//
//	PORT                 listen on :PORT
//	BASE_URL             server.base_url
//	MCP_ALLOWED_HOSTS    transport_security.allowed_hosts (comma separated)
//	MCP_ALLOWED_ORIGINS  transport_security.allowed_origins (comma separated)
//	WIDGET_DB_PATH       database.path
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  read_header_timeout: "10s"
//	rate_limit:
//	  window: "1m"
package config
