package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics collects Prometheus metrics for the service: the HTTP surface plus
// the stock-ledger counters the reporting side cares about.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wasteQuantity   *prometheus.CounterVec
	expiredLots     prometheus.Counter
	shortfalls      prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freshledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "freshledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	waste := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freshledger_waste_quantity_total",
		Help: "Stock quantity written off, by disposal reason.",
	}, []string{"reason"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshledger_expired_lots_total",
		Help: "Lots removed from the ledger after passing their expiry date.",
	})
	shortfalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshledger_consumption_shortfalls_total",
		Help: "Consume calls that obtained less than the requested quantity.",
	})
	registry.MustRegister(requests, duration, waste, expired, shortfalls)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		wasteQuantity:   waste,
		expiredLots:     expired,
		shortfalls:      shortfalls,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RecordWaste accounts a write-off by reason.
func (m *Metrics) RecordWaste(reason string, quantity decimal.Decimal) {
	if m == nil {
		return
	}
	qty, _ := quantity.Float64()
	m.wasteQuantity.WithLabelValues(reason).Add(qty)
}

// RecordExpiredLots accounts removed lots.
func (m *Metrics) RecordExpiredLots(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.expiredLots.Add(float64(count))
}

// RecordShortfall accounts a partially satisfied consume request.
func (m *Metrics) RecordShortfall() {
	if m == nil {
		return
	}
	m.shortfalls.Inc()
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
