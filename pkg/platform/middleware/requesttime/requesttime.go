// Package requesttime pins one "now" per HTTP request. Every consent rule evaluated
// while serving the request reads that instant, so a grant and the validity check
// made in the same request cannot disagree about the current second.
package requesttime

import (
	"net/http"
	"time"

	"consentwindow/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
