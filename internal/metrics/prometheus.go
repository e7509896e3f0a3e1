// Package metrics provides Prometheus metrics for the ADX server
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auction metrics
	AuctionsTotal   *prometheus.CounterVec
	AuctionDuration *prometheus.HistogramVec
	WinningPrice    *prometheus.HistogramVec
	BidsFiltered    prometheus.Counter
	TmaxOverruns    prometheus.Counter

	// DSP metrics
	DSPRequests *prometheus.CounterVec
	DSPLatency  *prometheus.HistogramVec
	DSPTopPrice *prometheus.HistogramVec

	// Catalog metrics
	ActiveDemands    prometheus.Gauge
	CatalogRefreshes *prometheus.CounterVec

	// Logger metrics
	LogRecordsDropped prometheus.Counter

	// System metrics
	RateLimitRejected prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "adx"
	}

	m := &Metrics{
		// Request metrics
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		// Auction metrics
		AuctionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auctions_total",
				Help:      "Total number of auctions by outcome",
			},
			[]string{"result"},
		),
		AuctionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auction_duration_seconds",
				Help:      "Auction duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, .75, 1, 1.5, 2},
			},
			[]string{"result"},
		),
		WinningPrice: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "winning_price",
				Help:      "Final winning price distribution after markdown",
				Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20, 50},
			},
			[]string{"creative_format"},
		),
		BidsFiltered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bids_filtered_total",
				Help:      "Total bids rejected by the sensitive content filter",
			},
		),
		TmaxOverruns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tmax_overruns_total",
				Help:      "Total auctions whose processing time exceeded the request tmax",
			},
		),

		// DSP metrics
		DSPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dsp_requests_total",
				Help:      "Total requests to each demand partner by outcome",
			},
			[]string{"demand", "status"},
		),
		DSPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dsp_latency_seconds",
				Help:      "Demand partner response latency in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .15, .2, .3, .5, .75, 1},
			},
			[]string{"demand"},
		),
		DSPTopPrice: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dsp_top_price",
				Help:      "Highest bid price per demand response",
				Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20, 50},
			},
			[]string{"demand"},
		),

		// Catalog metrics
		ActiveDemands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_demands",
				Help:      "Number of enabled demands in the current catalog generation",
			},
		),
		CatalogRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_refreshes_total",
				Help:      "Total catalog refresh attempts by outcome",
			},
			[]string{"status"},
		),

		// Logger metrics
		LogRecordsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_records_dropped_total",
				Help:      "Total runtime log records dropped due to a full buffer",
			},
		),

		// System metrics
		RateLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejected_total",
				Help:      "Total requests rejected due to rate limiting",
			},
		),
	}

	// Register all metrics
	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.AuctionsTotal,
		m.AuctionDuration,
		m.WinningPrice,
		m.BidsFiltered,
		m.TmaxOverruns,
		m.DSPRequests,
		m.DSPLatency,
		m.DSPTopPrice,
		m.ActiveDemands,
		m.CatalogRefreshes,
		m.LogRecordsDropped,
		m.RateLimitRejected,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordAuction records one auction outcome and its duration
func (m *Metrics) RecordAuction(result string, duration time.Duration) {
	m.AuctionsTotal.WithLabelValues(result).Inc()
	m.AuctionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordWin records the final price of a winning bid
func (m *Metrics) RecordWin(creativeFormat string, price float64) {
	m.WinningPrice.WithLabelValues(creativeFormat).Observe(price)
}

// RecordDSPCall records one demand partner call outcome
func (m *Metrics) RecordDSPCall(demand, status string, elapsed time.Duration, topPrice float64) {
	m.DSPRequests.WithLabelValues(demand, status).Inc()
	m.DSPLatency.WithLabelValues(demand).Observe(elapsed.Seconds())
	if topPrice > 0 {
		m.DSPTopPrice.WithLabelValues(demand).Observe(topPrice)
	}
}

// IncBidFiltered counts a bid rejected by the sensitive content filter
func (m *Metrics) IncBidFiltered() {
	m.BidsFiltered.Inc()
}

// IncTmaxOverrun counts an auction that exceeded the request's tmax
func (m *Metrics) IncTmaxOverrun() {
	m.TmaxOverruns.Inc()
}

// SetActiveDemands publishes the enabled demand count of the current generation
func (m *Metrics) SetActiveDemands(n int) {
	m.ActiveDemands.Set(float64(n))
}

// RecordCatalogRefresh records a catalog refresh attempt
func (m *Metrics) RecordCatalogRefresh(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.CatalogRefreshes.WithLabelValues(status).Inc()
}

// AddLogRecordsDropped accumulates runtime logger drop counts
func (m *Metrics) AddLogRecordsDropped(n uint64) {
	m.LogRecordsDropped.Add(float64(n))
}

// IncRateLimitRejected increments the rate limit rejected counter
// Implements middleware.RateLimitMetrics interface
func (m *Metrics) IncRateLimitRejected() {
	m.RateLimitRejected.Inc()
}
