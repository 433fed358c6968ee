// Package kv holds the health and deletion state shared by the reconcilers.
//
// Health check tasks write per-target outcomes, TCP proxies read them on every
// accepted connection, and the container reconciler marks containers it wants
// gone. Health writes are skipped when the value is unchanged so the hot read
// path rarely contends with a writer.
package kv
