package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "extractor"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	// Error type label values
	ErrTypeRetriableHTTP  = "retriable_http"
	ErrTypeFatalHTTP      = "fatal_http"
	ErrTypeFatalBusiness  = "fatal_business"
	ErrTypeExhausted      = "exhausted_retries"
	ErrTypeTransport      = "transport"
	ErrTypeDecode         = "decode"
	ErrTypeCheckpoint     = "checkpoint"
	ErrTypeAttemptTimeout = "attempt_timeout"
	ErrTypeOther          = "other"
)

// Labels holds constant labels applied to all metrics.
type Labels struct {
	Environment   string // Deployment environment (e.g., "production", "staging")
	Region        string
	CloudProvider string
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// HTTP metrics, one observation per attempt
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	retries          *prometheus.CounterVec

	// Extraction progress
	recordsEmitted   *prometheus.CounterVec
	pagesFetched     *prometheus.CounterVec
	windowsCompleted *prometheus.CounterVec
	bookmark         *prometheus.GaugeVec

	// Bookmark persistence
	checkpointWrites   *prometheus.CounterVec
	checkpointDuration prometheus.Histogram

	errors *prometheus.CounterVec
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP attempts against the payments API by endpoint and status",
		}, []string{"endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP attempts against the payments API",
			// Attempts are capped at 300s.
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"endpoint"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP attempts currently in flight",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retries_total",
			Help:      "Total number of retried attempts by error type",
		}, []string{"type"}),
		recordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_emitted_total",
			Help:      "Total number of records emitted by stream",
		}, []string{"stream"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of pages fetched by stream",
		}, []string{"stream"}),
		windowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "windows_completed_total",
			Help:      "Total number of date windows walked to exhaustion by stream",
		}, []string{"stream"}),
		bookmark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "bookmark_timestamp_seconds",
			Help:      "Current replication bookmark as unix seconds by stream",
		}, []string{"stream"}),
		checkpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkpoint_writes_total",
			Help:      "Total number of bookmark writes by status",
		}, []string{"status"}),
		checkpointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "checkpoint_write_duration_seconds",
			Help:      "Duration of bookmark writes",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by type",
		}, []string{"type"}),
	}

	err := errors.Join(
		reg.Register(m.httpRequests),
		reg.Register(m.httpDuration),
		reg.Register(m.requestsInFlight),
		reg.Register(m.retries),
		reg.Register(m.recordsEmitted),
		reg.Register(m.pagesFetched),
		reg.Register(m.windowsCompleted),
		reg.Register(m.bookmark),
		reg.Register(m.checkpointWrites),
		reg.Register(m.checkpointDuration),
		reg.Register(m.errors),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}

// RecordRequest records one HTTP attempt. statusCode is ignored when err is a transport error
// and no response was received.
func (m *Metrics) RecordRequest(endpoint string, statusCode int, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusError
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	} else if err == nil {
		status = StatusSuccess
	}
	m.httpRequests.WithLabelValues(endpoint, status).Inc()
	m.httpDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) IncRetry(errType string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(errType).Inc()
}

func (m *Metrics) AddRecordsEmitted(stream string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsEmitted.WithLabelValues(stream).Add(float64(count))
}

func (m *Metrics) IncPagesFetched(stream string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(stream).Inc()
}

func (m *Metrics) IncWindowsCompleted(stream string) {
	if m == nil {
		return
	}
	m.windowsCompleted.WithLabelValues(stream).Inc()
}

func (m *Metrics) SetBookmark(stream string, value time.Time) {
	if m == nil {
		return
	}
	m.bookmark.WithLabelValues(stream).Set(float64(value.Unix()))
}

func (m *Metrics) RecordCheckpointWrite(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errors.WithLabelValues(ErrTypeCheckpoint).Inc()
	}
	m.checkpointWrites.WithLabelValues(status).Inc()
	m.checkpointDuration.Observe(durationSeconds)
}
