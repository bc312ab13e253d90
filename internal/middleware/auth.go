package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKey rejects requests that do not carry the configured key as a bearer
// token. An empty key disables the check.
func (m *Middleware) APIKey(next http.Handler) http.Handler {
	key := m.cfg.Server.APIKey
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}

		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			m.log.Debug().Str("path", r.URL.Path).Msg("invalid API key")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
