package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const authRealm = `Bearer realm="patentscope"`

// publicPath reports routes served without a key: probes and scrapes.
func publicPath(p string) bool {
	return p == "/health" || p == "/metrics"
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" matching one of apiKeys.
// Blank keys are ignored; with none left the middleware is a pass-through.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			token, msg := bearerToken(r.Header.Get("Authorization"))
			if msg == "" && !acceptKey(keys, token) {
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", authRealm)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential; the scheme name is case-insensitive.
// A non-empty second result describes why the header was rejected.
func bearerToken(header string) ([]byte, string) {
	if header == "" {
		return nil, "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, "authorization header must use Bearer scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, "empty bearer token"
	}
	return []byte(token), ""
}

func acceptKey(keys [][]byte, token []byte) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(k, token)
	}
	return match == 1
}
