// ABOUTME: DNS-rebinding protection for the MCP endpoint via Host and Origin allow-lists.
// ABOUTME: Entries ending in ":*" match the host on any port.

package mcp

import (
	"net/http"
	"strings"
)

// TransportSecurity restricts which Host and Origin headers are accepted.
// An empty list disables that check.
type TransportSecurity struct {
	AllowedHosts   []string
	AllowedOrigins []string
}

// Enabled reports whether any check is active.
func (ts TransportSecurity) Enabled() bool {
	return len(ts.AllowedHosts) > 0 || len(ts.AllowedOrigins) > 0
}

// Middleware rejects disallowed hosts with 421 and disallowed origins with 403.
func (ts TransportSecurity) Middleware(next http.Handler) http.Handler {
	if !ts.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(ts.AllowedHosts) > 0 && !matchAllowed(r.Host, ts.AllowedHosts) {
			http.Error(w, "Misdirected Request: invalid Host header", http.StatusMisdirectedRequest)
			return
		}
		// Requests without an Origin come from non-browser clients.
		if origin := r.Header.Get("Origin"); origin != "" && len(ts.AllowedOrigins) > 0 &&
			!matchAllowed(origin, ts.AllowedOrigins) {
			http.Error(w, "Forbidden: invalid Origin header", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func matchAllowed(value string, allowed []string) bool {
	if value == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return true
		}
		if base, ok := strings.CutSuffix(a, ":*"); ok {
			if rest, ok := cutPrefixFold(value, base+":"); ok && isPort(rest) {
				return true
			}
		}
	}
	return false
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
