// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/chat-auth-be/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomePending  = "pending"
	OutcomeResent   = "resent"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatauth_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	authEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatauth_auth_events_total",
			Help: "Auth operations by event and outcome",
		},
		[]string{"event", "outcome"},
	)
	accounts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatauth_accounts",
			Help: "Registered accounts by verification state",
		},
		[]string{"state"},
	)
)

// Middleware records request duration labelled by the matched chi route, so
// path parameters such as verification tokens never become label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// RecordAuth counts one auth operation.
func RecordAuth(event, outcome string) {
	authEvents.WithLabelValues(event, outcome).Inc()
}

// SetAccountStats publishes the latest account counts.
func SetAccountStats(s models.AccountStats) {
	accounts.WithLabelValues("total").Set(float64(s.Total))
	accounts.WithLabelValues("verified").Set(float64(s.Verified))
	accounts.WithLabelValues("unverified").Set(float64(s.Unverified))
}
