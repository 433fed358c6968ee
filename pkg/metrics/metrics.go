package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciliation metrics
	ReconciliationCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_reconciliation_cycles_total",
			Help: "Total number of reconciliation ticks by loop",
		},
		[]string{"loop"},
	)

	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easyharun_reconciliation_duration_seconds",
			Help:    "Duration of one reconciliation tick by loop",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"loop"},
	)

	ReconciliationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_reconciliation_errors_total",
			Help: "Total number of failed reconciliation ticks by loop",
		},
		[]string{"loop"},
	)

	// World metrics
	ContainersCurrent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "easyharun_containers_current",
			Help: "Number of owned containers in the last current world",
		},
	)

	ContainersExpected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "easyharun_containers_expected",
			Help: "Number of containers in the last expected world",
		},
	)

	BrainActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_brain_actions_total",
			Help: "Total number of container actions decided by kind",
		},
		[]string{"action"},
	)

	ContainerBuildErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easyharun_container_build_errors_total",
			Help: "Total number of runtime containers skipped because of malformed labels",
		},
	)

	ContainersReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easyharun_containers_reaped_total",
			Help: "Total number of containers stopped and removed after being marked for deletion",
		},
	)

	// KV metrics
	KVWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_kv_writes_total",
			Help: "Total number of KV write lock acquisitions by map",
		},
		[]string{"map"},
	)

	// Health check metrics
	HealthChecksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "easyharun_health_checks_running",
			Help: "Number of running health check tasks",
		},
	)

	HealthCheckResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_health_check_results_total",
			Help: "Total number of health probe results by check and outcome",
		},
		[]string{"check", "outcome"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easyharun_health_check_duration_seconds",
			Help:    "Health probe duration by check type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Proxy metrics
	ProxyInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "easyharun_proxy_instances",
			Help: "Number of live TCP proxy instances",
		},
	)

	ProxyBackends = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "easyharun_proxy_backends",
			Help: "Number of backends per proxy listen address",
		},
		[]string{"listen"},
	)

	ProxyConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_proxy_connections_total",
			Help: "Total number of accepted connections by listen address and result",
		},
		[]string{"listen", "result"},
	)

	ProxyActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "easyharun_proxy_active_connections",
			Help: "Number of connections currently being proxied",
		},
		[]string{"listen"},
	)

	ProxyBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_proxy_bytes_total",
			Help: "Total number of bytes proxied by listen address and direction",
		},
		[]string{"listen", "direction"},
	)

	// Task runtime metrics
	ActorsRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "easyharun_actors_running",
			Help: "Number of running tasks by kind",
		},
		[]string{"kind"},
	)

	ActorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_actor_failures_total",
			Help: "Total number of failed task handler invocations by kind",
		},
		[]string{"kind"},
	)

	ConfigReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyharun_config_reloads_total",
			Help: "Total number of configuration reload attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationErrorsTotal)
	prometheus.MustRegister(ContainersCurrent)
	prometheus.MustRegister(ContainersExpected)
	prometheus.MustRegister(BrainActionsTotal)
	prometheus.MustRegister(ContainerBuildErrorsTotal)
	prometheus.MustRegister(ContainersReapedTotal)
	prometheus.MustRegister(KVWritesTotal)
	prometheus.MustRegister(HealthChecksRunning)
	prometheus.MustRegister(HealthCheckResultsTotal)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(ProxyInstances)
	prometheus.MustRegister(ProxyBackends)
	prometheus.MustRegister(ProxyConnectionsTotal)
	prometheus.MustRegister(ProxyActiveConnections)
	prometheus.MustRegister(ProxyBytesTotal)
	prometheus.MustRegister(ActorsRunning)
	prometheus.MustRegister(ActorFailuresTotal)
	prometheus.MustRegister(ConfigReloadsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
