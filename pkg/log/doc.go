/*
Package log provides structured logging for easyharun using zerolog.

A single package-level zerolog.Logger is configured once by Init and every
component derives a child logger from it:

	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true})

	logger := log.WithComponent("proxy-manager")
	logger = log.WithListenAddr(logger, "0.0.0.0:80")
	logger.Info().Str("backend", "127.0.0.1:49153").Msg("Backend added")

Console output (the default) is meant for people running easyharun in a
terminal; JSON output is meant for log shippers.

# Fields

The field names below are used consistently so log lines can be filtered:

	component     the long-lived task that wrote the line
	container_id  runtime container id (short form where readable)
	listen_addr   proxy listen address
	target        health check target key "{check}-{container_id}"
	actor_id      task id from the actor registry
*/
package log
