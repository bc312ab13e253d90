package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/herald/herald/internal/metrics"
)

// Metrics records request counts and latency per route pattern. It must wrap
// the mux directly so the matched pattern is visible after the call.
func (m *Middleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		metrics.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
