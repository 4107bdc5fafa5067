package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/ttsblind/pregen/internal/httputil"
)

// SharedSecret rejects requests whose Authorization header is not exactly
// "Bearer <secret>". An empty secret lets every request through.
func SharedSecret(secret string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + secret)
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				httputil.Unauthorized(w, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
