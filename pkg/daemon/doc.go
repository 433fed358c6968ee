/*
Package daemon wires easyharun together.

New builds the shared handles: config provider, KV store, task registry,
event broker and component health. Run spawns one task per loop:

	reconciler      container world diff, one action per tick
	reaper          removes containers marked for deletion
	health_manager  one health_check task per (container, check)
	proxy_manager   one tcp_proxy task per listen address

and, when configured, the config watcher, the gRPC control service and the
HTTP health server. Cancelling the context passed to Run stops everything.
*/
package daemon
