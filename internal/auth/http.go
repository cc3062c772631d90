// ABOUTME: HTTP middleware for bearer authentication on the MCP endpoint
// ABOUTME: Rejects with a WWW-Authenticate challenge pointing at the resource metadata

package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// BearerMiddleware verifies the bearer credential before passing the request
// on. Verification is pass/fail; the principal is attached with WithAuth.
// metadataURL, when set, is advertised in the WWW-Authenticate challenge so
// clients can discover the authorization server.
func BearerMiddleware(verifier TokenVerifier, metadataURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				unauthorized(w, metadataURL, "", errMsg)
				return
			}

			principalID, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, metadataURL, "invalid_token", "invalid token")
				return
			}

			ctx := WithAuth(r.Context(), &AuthContext{PrincipalID: principalID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, metadataURL, code, msg string) {
	var params []string
	if code != "" {
		params = append(params, fmt.Sprintf("error=%q", code))
	}
	if metadataURL != "" {
		params = append(params, fmt.Sprintf("resource_metadata=%q", metadataURL))
	}

	challenge := "Bearer"
	if len(params) > 0 {
		challenge += " " + strings.Join(params, ", ")
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
