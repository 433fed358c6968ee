/*
Package types defines the identifiers and runtime label vocabulary shared by
every easyharun package.

easyharun keeps no database. Everything it needs to recognise its own containers
after a restart is written on the containers themselves as labels:

	easyharun=1.0.0                      ownership marker
	easyharun_name=api                   declared container name
	easyharun_image=nginx:1.27           image reference
	easyharun_replica_id=0               replica index
	easyharun_container_ports=80,9090    declared container ports
	easyharun_health_checks=http,tcp     declared health check names
	easyharun_proxies=web:80,admin:9090  declared proxy refs

ContainerID wraps the runtime's identifier so it cannot be confused with other
strings (names, targets, listen addresses) in function signatures.
*/
package types
