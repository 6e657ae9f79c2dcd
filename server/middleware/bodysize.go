package middleware

import (
	"net/http"

	"github.com/dustin/go-humanize"
)

const defaultMaxBodySize = 1 << 20

// BodySizeLimit returns middleware that restricts the request body to the given
// size string (e.g. "1MB", "512KiB"). Unparseable sizes fall back to 1MiB.
func BodySizeLimit(maxSize string) Middleware {
	size := int64(defaultMaxBodySize)
	if n, err := humanize.ParseBytes(maxSize); err == nil && n > 0 {
		size = int64(n)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
