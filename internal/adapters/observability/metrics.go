package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"seatview/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "seatview", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seatview", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "seatview", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seatview", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "seatview", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|skip|del
	)
	Projections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "seatview", Name: "review_projections_total", Help: "Review projections by outcome."},
		[]string{"outcome"}, // outcome: ok|missing_relation|error
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "seatview", Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "seatview", Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)."},
		[]string{"name"},
	)
)

// Serve exposes reg on a dedicated listener when addr is set.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Projections, RateLimited, BreakerState)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|skip|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveProjection records n successful projections, or one failure.
func ObserveProjection(n int, err error) {
	switch {
	case err == nil:
		Projections.WithLabelValues("ok").Add(float64(n))
	case errors.Is(err, domain.ErrMissingRelation):
		Projections.WithLabelValues("missing_relation").Inc()
	default:
		Projections.WithLabelValues("error").Inc()
	}
}

func ObserveBreaker(name string, state float64) {
	BreakerState.WithLabelValues(name).Set(state)
}
