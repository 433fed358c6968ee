package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Update(t *testing.T) {
	h := NewHealthChecker("test")

	h.Update("runtime", true, "docker reachable")

	comp, ok := h.Component("runtime")
	require.True(t, ok)
	assert.True(t, comp.Healthy)
	assert.Equal(t, "docker reachable", comp.Message)
	assert.Equal(t, []string{"runtime"}, h.Names())
}

func TestHealthChecker_ComponentNames(t *testing.T) {
	h := NewHealthChecker("test")
	h.Update(ComponentHealthChecks, true, "")

	comp, ok := h.Component("health")
	require.True(t, ok)
	assert.IsType(t, ComponentHealth{}, comp)
	assert.Equal(t, ComponentHealthChecks, comp.Name)
	assert.NotContains(t, CriticalComponents, ComponentHealthChecks)
}

func TestGetHealth_AllHealthy(t *testing.T) {
	h := NewHealthChecker("1.0.0")
	h.Update(ComponentRuntime, true, "")
	h.Update(ComponentAPI, true, "")

	health := h.GetHealth()

	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	h := NewHealthChecker("1.0.0")
	h.Update(ComponentRuntime, false, "docker unreachable")
	h.Update(ComponentAPI, true, "")

	health := h.GetHealth()

	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: docker unreachable", health.Components[ComponentRuntime])
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *HealthChecker)
		wantStatus string
	}{
		{
			name:       "nothing registered",
			setup:      func(h *HealthChecker) {},
			wantStatus: "not_ready",
		},
		{
			name: "all critical ready",
			setup: func(h *HealthChecker) {
				for _, name := range CriticalComponents {
					h.Update(name, true, "")
				}
			},
			wantStatus: "ready",
		},
		{
			name: "critical component unhealthy",
			setup: func(h *HealthChecker) {
				for _, name := range CriticalComponents {
					h.Update(name, true, "")
				}
				h.Update(ComponentRuntime, false, "docker unreachable")
			},
			wantStatus: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("test")
			tt.setup(h)
			assert.Equal(t, tt.wantStatus, h.GetReadiness().Status)
		})
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	h := NewHealthChecker("test")
	h.Update(ComponentConfig, false, "parse error")

	rec := httptest.NewRecorder()
	h.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
}

func TestReadyHandler_Ready(t *testing.T) {
	h := NewHealthChecker("test")
	for _, name := range CriticalComponents {
		h.Update(name, true, "")
	}

	rec := httptest.NewRecorder()
	h.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker("test")

	rec := httptest.NewRecorder()
	h.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}
