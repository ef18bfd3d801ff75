package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors for provider traffic, validations,
// and instruction executions. A nil *Registry records nothing.
type Registry struct {
	*prometheus.Registry

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	validations      *prometheus.CounterVec
	instructions     *prometheus.CounterVec
	auditFailures    prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "c2c_provider_requests_total",
				Help: "Total number of requests made to cloud providers",
			},
			[]string{"host", "status"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "c2c_provider_request_duration_seconds",
				Help:    "Cloud provider request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "c2c_validations_total",
				Help: "Total number of integration validations",
			},
			[]string{"service", "result"},
		),
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "c2c_instructions_total",
				Help: "Total number of executed control instructions",
			},
			[]string{"service", "topic", "state"},
		),
		auditFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "c2c_audit_event_failures_total",
				Help: "Total number of audit events that could not be appended",
			},
		),
	}

	reg.MustRegister(r.providerRequests)
	reg.MustRegister(r.providerDuration)
	reg.MustRegister(r.validations)
	reg.MustRegister(r.instructions)
	reg.MustRegister(r.auditFailures)

	return r
}

// RecordProviderRequest records one outbound request. A status of 0 means the
// request failed before a response was received.
func (r *Registry) RecordProviderRequest(host string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.providerRequests.WithLabelValues(host, statusToString(status)).Inc()
	r.providerDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// RecordValidation records the outcome of validating an integration.
func (r *Registry) RecordValidation(service string, success bool) {
	if r == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	r.validations.WithLabelValues(service, result).Inc()
}

// RecordInstruction records the final state of an executed instruction.
func (r *Registry) RecordInstruction(service, topic, state string) {
	if r == nil {
		return
	}
	r.instructions.WithLabelValues(service, topic, state).Inc()
}

// RecordAuditFailure records an audit event that could not be appended.
func (r *Registry) RecordAuditFailure() {
	if r == nil {
		return
	}
	r.auditFailures.Inc()
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "error"
	}
}
