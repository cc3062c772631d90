// Package auth provides bearer authentication for the widget gateway's MCP
// endpoint.
//
// # Bearer Tokens
//
// Clients present an HS256 JWT in the Authorization header. The gateway only
// checks that the token verifies; it does not authorize individual tools.
// The sub claim becomes the principal, available to handlers through
// FromContext and used as the rate limiting key.
//
// Tokens can be minted locally with the "widget-gateway token" command or
// issued by an external authorization server sharing the secret.
//
// # Discovery
//
// When auth is enabled the gateway serves RFC 9728 metadata at
// /.well-known/oauth-protected-resource and points to it from the
// WWW-Authenticate header of every 401, so MCP clients can find the
// authorization server and run the OAuth flow there.
//
// # PKCE
//
// GenerateVerifier, Challenge and VerifyPKCE implement the S256 method of
// RFC 7636 for authorization servers embedding this package.
package auth
