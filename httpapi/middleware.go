package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// requireMasterKey rejects any request whose X-Master-Key header doesn't
// match the configured key, comparing SHA-256 digests in constant time so
// response timing can't leak how many leading bytes matched.
func (s *Server) requireMasterKey(next http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(s.deps.MasterKey))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := sha256.Sum256([]byte(r.Header.Get("X-Master-Key")))
		if s.deps.MasterKey == "" || subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid X-Master-Key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
