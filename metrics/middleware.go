package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// unmatchedRoute labels requests no route pattern matched
const unmatchedRoute = "unmatched"

// routeLabel returns the chi route pattern of r, keeping label cardinality bounded
// by never using the raw path.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// statusLabel treats a handler that never wrote a header as 200
func statusLabel(ww middleware.WrapResponseWriter) string {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}

// Metrics records request count, latency and in-flight requests per route pattern
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPRequestInFlight.Inc()
		defer HTTPRequestInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := routeLabel(r)
		HTTPRequestTotals.WithLabelValues(r.Method, route, statusLabel(ww)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveNormalization records the latency of one normal form computation
func ObserveNormalization(form string, start time.Time) {
	NormalizationDuration.WithLabelValues(form).Observe(time.Since(start).Seconds())
}
