// ABOUTME: OAuth 2.0 protected resource metadata (RFC 9728) for the MCP endpoint
// ABOUTME: Tells clients which authorization servers issue tokens for this gateway

package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// MetadataPath is the well-known path for protected resource metadata.
const MetadataPath = "/.well-known/oauth-protected-resource"

// ResourceMetadata is the RFC 9728 document.
type ResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
}

// MetadataURL returns the absolute metadata URL for a base URL.
func MetadataURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + MetadataPath
}

// ProtectedResourceMetadata serves md as JSON.
func ProtectedResourceMetadata(md ResourceMetadata) http.Handler {
	if md.BearerMethodsSupported == nil {
		md.BearerMethodsSupported = []string{"header"}
	}
	body, err := json.Marshal(md)
	if err != nil {
		panic("auth: encoding resource metadata: " + err.Error())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(body)
	})
}
