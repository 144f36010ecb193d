package handlers

import (
	"crypto/subtle"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// RequireAdmin is middleware: blocks access unless the request carries the
// admin API key.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			h.writeError(w, http.StatusUnauthorized, msgUnauthorized, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
