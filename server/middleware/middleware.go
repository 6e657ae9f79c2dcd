package middleware

import (
	"net/http"
	"slices"
)

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain folds middlewares into one, the first being outermost. The server
// stacks
//
//	Recovery, RequestID, CORS, BodySizeLimit, RequestLogger
//
// so Recovery sees panics from everything after it and every log line
// already carries the request id.
func Chain(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for _, m := range slices.Backward(middlewares) {
			h = m(h)
		}
		return h
	}
}
