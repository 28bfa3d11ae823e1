package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mmynk/guestpass/internal/metrics"
)

// Instrument records request counts and latency per route template.
// It must be installed with Router.Use so the matched route is known.
func Instrument(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			rec := wrap(w)
			next.ServeHTTP(rec, r)

			m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status())).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
