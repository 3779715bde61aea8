package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notify"

// Metrics holds the Prometheus collectors for tenant routing and provisioning.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SchemaBinds          *prometheus.CounterVec
	ConnResets           *prometheus.CounterVec
	AcquireFailures      prometheus.Counter
	Provisioning         *prometheus.CounterVec
	ProvisioningDuration *prometheus.HistogramVec
	TenantRejections     *prometheus.CounterVec
	StatusCacheLookups   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SchemaBinds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "schema_binds_total",
			Help:      "Connection schema binds by result.",
		}, []string{"result"}), // ok, missing_schema, error
		ConnResets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "conn_resets_total",
			Help:      "search_path resets on release by result.",
		}, []string{"result"}), // ok, discarded
		AcquireFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "acquire_failures_total",
			Help:      "Failed attempts to obtain a pooled connection.",
		}),
		Provisioning: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenants",
			Name:      "provisioning_total",
			Help:      "Tenant lifecycle operations by operation and result.",
		}, []string{"operation", "result"}),
		ProvisioningDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tenants",
			Name:      "provisioning_duration_seconds",
			Help:      "Duration of schema provisioning operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		TenantRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "tenant_rejections_total",
			Help:      "Requests rejected by the tenant middleware by reason.",
		}, []string{"reason"}), // missing, invalid, not_found, inactive, unavailable
		StatusCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenants",
			Name:      "status_cache_lookups_total",
			Help:      "Tenant status cache lookups by outcome.",
		}, []string{"outcome"}), // hit, miss, error
	}
}

func (m *Metrics) SchemaBind(result string) {
	if m == nil {
		return
	}
	m.SchemaBinds.WithLabelValues(result).Inc()
}

func (m *Metrics) ConnReset(result string) {
	if m == nil {
		return
	}
	m.ConnResets.WithLabelValues(result).Inc()
}

func (m *Metrics) AcquireFailed() {
	if m == nil {
		return
	}
	m.AcquireFailures.Inc()
}

// ObserveProvisioning records one lifecycle operation started at start.
func (m *Metrics) ObserveProvisioning(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Provisioning.WithLabelValues(operation, result).Inc()
	m.ProvisioningDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) TenantRejected(reason string) {
	if m == nil {
		return
	}
	m.TenantRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) StatusCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.StatusCacheLookups.WithLabelValues(outcome).Inc()
}
