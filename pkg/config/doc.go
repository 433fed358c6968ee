/*
Package config loads the easyharun desired state.

A config file declares proxies, health checks and containers. The format is
picked from the extension: .toml is decoded with BurntSushi/toml and
.yaml/.yml with yaml.v3. Unknown keys are rejected in both.

	[engine]
	match = "image_port"

	[[proxy]]
	name = "web"
	listen = "0.0.0.0:8080"

	[[health_check]]
	name = "http_ok"
	check = "http"
	url = "http://127.0.0.1:{{container.port_dynamic_host}}/health"

	[[container]]
	name = "web"
	image = "nginx:alpine"
	replicas = 2
	container_ports = [80]
	health_checks = ["http_ok"]
	proxies = [{ name = "web" }]

Provider holds the active Config for the reconcilers and Watcher swaps in a
new one when the file changes.
*/
package config
