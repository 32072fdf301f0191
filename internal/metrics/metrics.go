// Package metrics holds the Prometheus collectors of the manager. They are
// registered with the controller-runtime registry so a single /metrics
// endpoint serves both these and the manager's own metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "geodns"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	RecordOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "record_operations_total",
		Help:      "Record mutations by operation and result.",
	}, []string{"operation", "result"})

	RangeOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ip_range_operations_total",
		Help:      "IP range mutations by operation and result.",
	}, []string{"operation", "result"})

	HealthReadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "health_read_errors_total",
		Help:      "Health provider reads that failed and degraded a record to unknown.",
	})

	RecordStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "record_status",
		Help:      "Last derived status per record, 1 for the current status.",
	}, []string{"fqdn", "status"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by route template, method and status code.",
	}, []string{"route", "method", "code"})
)

func init() {
	ctrlmetrics.Registry.MustRegister(RecordOperations, RangeOperations, HealthReadErrors, RecordStatus, HTTPRequests)
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveStatus records status as the current status of fqdn.
func ObserveStatus(fqdn string, status string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}
		RecordStatus.WithLabelValues(fqdn, s).Set(v)
	}
}

// ForgetRecord drops the per-record series of a deleted record.
func ForgetRecord(fqdn string) {
	RecordStatus.DeletePartialMatch(prometheus.Labels{"fqdn": fqdn})
}
