package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the download proxy.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	admissionRejected  prometheus.Counter
	downloadsTotal     *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	bytesStreamedTotal prometheus.Counter
	metadataRetries    prometheus.Counter
	rateWindows        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the proxy.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytdl_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytdl_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	admissionRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytdl_admission_rejected_total",
		Help: "Total number of download requests rejected by the per-client rate limit",
	})
	downloadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ytdl_downloads_total",
		Help: "Download attempts by outcome (ok or an error kind)",
	}, []string{"outcome"})
	fallbacksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ytdl_fallbacks_total",
		Help: "Byte-fetch fallback strategies attempted after the primary stream failed",
	}, []string{"strategy"})
	bytesStreamedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytdl_bytes_streamed_total",
		Help: "Total number of media bytes relayed to clients",
	})
	metadataRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytdl_metadata_retries_total",
		Help: "Total number of repeated stream-list fetches",
	})
	rateWindows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ytdl_rate_windows",
		Help: "Number of live per-client rate limit windows",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		admissionRejected,
		downloadsTotal,
		fallbacksTotal,
		bytesStreamedTotal,
		metadataRetries,
		rateWindows,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		errorsTotal:        errorsTotal,
		admissionRejected:  admissionRejected,
		downloadsTotal:     downloadsTotal,
		fallbacksTotal:     fallbacksTotal,
		bytesStreamedTotal: bytesStreamedTotal,
		metadataRetries:    metadataRetries,
		rateWindows:        rateWindows,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncAdmissionRejected increments the rate-limited counter.
func (m *Metrics) IncAdmissionRejected() {
	m.admissionRejected.Inc()
}

// IncDownloads increments the downloads counter for the given outcome.
func (m *Metrics) IncDownloads(outcome string) {
	m.downloadsTotal.WithLabelValues(outcome).Inc()
}

// IncFallback increments the fallback counter for the given strategy.
func (m *Metrics) IncFallback(strategy string) {
	m.fallbacksTotal.WithLabelValues(strategy).Inc()
}

// AddBytesStreamed adds n relayed bytes.
func (m *Metrics) AddBytesStreamed(n int64) {
	if n > 0 {
		m.bytesStreamedTotal.Add(float64(n))
	}
}

// IncMetadataRetries increments the metadata retry counter.
func (m *Metrics) IncMetadataRetries() {
	m.metadataRetries.Inc()
}

// SetRateWindows sets the live rate window gauge.
func (m *Metrics) SetRateWindows(n int) {
	m.rateWindows.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. rate windows).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
