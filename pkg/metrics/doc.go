/*
Package metrics provides Prometheus metrics and component health reporting
for easyharun.

All collectors are package-level globals registered with the default
Prometheus registry at init time, so any package can record into them
without plumbing. They are exposed over HTTP by Handler:

	http.Handle("/metrics", metrics.Handler())

Durations are recorded with a Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconciliationDuration, "container")

HealthChecker is the daemon's component health table. Each long-running
part of the daemon (runtime, config, reconciler, health, proxy, api)
reports its state with Update; the /health, /ready and /live handlers
render that table as JSON. Readiness requires every entry in
CriticalComponents to be registered and healthy.
*/
package metrics
