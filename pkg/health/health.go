package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeExec CheckType = "exec"
)

// Result represents the outcome of one probe. Message carries the failure
// reason when Healthy is false.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

func ok(start time.Time, message string) Result {
	return Result{Healthy: true, Message: message, CheckedAt: start, Duration: time.Since(start)}
}

func failed(start time.Time, message string) Result {
	return Result{Healthy: false, Message: message, CheckedAt: start, Duration: time.Since(start)}
}
