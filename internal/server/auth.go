package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/sushi-rag/internal/logging"
)

// authRealm is advertised in WWW-Authenticate challenges.
const authRealm = "sushi-rag"

// requireBearer guards the MCP endpoint with a static bearer token
// (SUSHI_API_KEY). An empty key disables the check. rejected, if non-nil, is
// called for every refusal. Tokens are never logged.
func requireBearer(apiKey string, rejected func(), next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if ok && subtle.ConstantTimeCompare([]byte(token), want) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		if rejected != nil {
			rejected()
		}
		if !ok {
			challenge(w, r, "", "authorization required")
			return
		}
		challenge(w, r, "invalid_token", "invalid token")
	})
}

// challenge answers 401 with a Bearer challenge. code is the RFC 6750 error
// code, empty when no credentials were presented.
func challenge(w http.ResponseWriter, r *http.Request, code, msg string) {
	logging.FromContext(r.Context()).Warn("mcp request rejected",
		slog.String("reason", msg),
		slog.String("remote", clientIP(r)),
	)
	h := `Bearer realm="` + authRealm + `"`
	if code != "" {
		h += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", h)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// bearerToken parses an Authorization header value. The scheme is matched
// case-insensitively; an empty token counts as absent.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
