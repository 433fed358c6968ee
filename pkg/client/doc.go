// Package client is the Go client for a running easyharun daemon's control
// service. It is used by the CLI's status, actors and events commands.
package client
