// Package metrics holds the prometheus counters exported by shelf.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "shelf"

	MetricStorageOperations = "storage_operations_total"
	MetricSchemaChanges     = "schema_changes_total"
	MetricSoftFailedReads   = "soft_failed_reads_total"
	MetricHTTPRequests      = "http_requests_total"
)

// Schema change kinds.
const (
	ChangeCreate    = "create"
	ChangeAdd       = "add"
	ChangeTolerated = "tolerated"
)

// Metrics is a set of counters registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	storageOps     *prometheus.CounterVec
	schemaChanges  *prometheus.CounterVec
	softFailedRead *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

// New creates and registers the shelf counters.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storageOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricStorageOperations,
				Help:      "Storage operations by operation and result.",
			},
			[]string{"op", "result"},
		),
		schemaChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricSchemaChanges,
				Help:      "Tables created and columns added on write.",
			},
			[]string{"kind"},
		),
		softFailedRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricSoftFailedReads,
				Help:      "Reads whose storage error was answered with an empty list.",
			},
			[]string{"form"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricHTTPRequests,
				Help:      "HTTP requests by method and status code.",
			},
			[]string{"method", "code"},
		),
	}
	m.registry.MustRegister(
		m.storageOps,
		m.schemaChanges,
		m.softFailedRead,
		m.httpRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// StorageOp counts one storage call. err decides the result label.
func (m *Metrics) StorageOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storageOps.WithLabelValues(op, result).Inc()
}

// SchemaChange counts one schema change of the given kind.
func (m *Metrics) SchemaChange(kind string) {
	if m == nil {
		return
	}
	m.schemaChanges.WithLabelValues(kind).Inc()
}

// SoftFailedRead counts one read answered with an empty list after an error.
func (m *Metrics) SoftFailedRead(form string) {
	if m == nil {
		return
	}
	m.softFailedRead.WithLabelValues(form).Inc()
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(method, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, code).Inc()
}

// StorageOps returns the storage operation counter, for tests.
func (m *Metrics) StorageOps() *prometheus.CounterVec { return m.storageOps }

// SchemaChanges returns the schema change counter, for tests.
func (m *Metrics) SchemaChanges() *prometheus.CounterVec { return m.schemaChanges }

// SoftFailedReads returns the soft-failed read counter, for tests.
func (m *Metrics) SoftFailedReads() *prometheus.CounterVec { return m.softFailedRead }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
