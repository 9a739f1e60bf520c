package mw

import "net/http"

// CacheControl marks responses as private to the credentials that selected
// the subject. With noStore set, clients are told not to keep them at all.
func CacheControl(noStore bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Authorization")
			h.Add("Vary", "Cookie")
			if noStore {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			} else {
				h.Set("Cache-Control", "private")
			}
			next.ServeHTTP(w, r)
		})
	}
}
