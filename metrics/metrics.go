// Package metrics exposes the registration mock's Prometheus collectors and
// the listener that serves them.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder groups the counters updated by the request handlers.
// All methods are safe to call on a nil *Recorder.
type Recorder struct {
	submissions      prometheus.Counter
	registeredNodes  prometheus.Gauge
	invalidPayloads  prometheus.Counter
	internalErrors   prometheus.Counter
	injectedFailures *prometheus.CounterVec
}

// NewRecorder creates the collectors under namespace and registers them with reg.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_submissions_total",
			Help:      "Count of node registrations processed, overwrites included.",
		}),
		registeredNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_nodes",
			Help:      "Number of distinct node identifiers currently held.",
		}),
		invalidPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_payloads_total",
			Help:      "Count of registration requests rejected as invalid JSON.",
		}),
		internalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "internal_errors_total",
			Help:      "Count of registration requests answered with an internal server error.",
		}),
		injectedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injected_failures_total",
			Help:      "Count of responses served by fixed-failure endpoints.",
		}, []string{"endpoint", "code"}),
	}

	reg.MustRegister(r.submissions, r.registeredNodes, r.invalidPayloads, r.internalErrors, r.injectedFailures)
	return r
}

func (r *Recorder) RecordSubmission() {
	if r == nil {
		return
	}
	r.submissions.Inc()
}

func (r *Recorder) SetRegisteredNodes(n int) {
	if r == nil {
		return
	}
	r.registeredNodes.Set(float64(n))
}

func (r *Recorder) RecordInvalidPayload() {
	if r == nil {
		return
	}
	r.invalidPayloads.Inc()
}

func (r *Recorder) RecordInternalError() {
	if r == nil {
		return
	}
	r.internalErrors.Inc()
}

func (r *Recorder) RecordInjectedFailure(endpoint string, code int) {
	if r == nil {
		return
	}
	r.injectedFailures.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

// MetricsServer serves the process registry on its own listener.
type MetricsServer struct {
	registry *prometheus.Registry
	recorder *Recorder
	srv      *http.Server
}

// New builds a metrics server for addr. The namespace is derived from
// packageName with dashes replaced, since Prometheus names reject them.
func New(packageName, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	namespace := strings.ReplaceAll(packageName, "-", "_")
	recorder := NewRecorder(namespace, registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		recorder: recorder,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) Recorder() *Recorder {
	return m.recorder
}

func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
