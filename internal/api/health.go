package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// StatusReporter reports the state of an optional component.
type StatusReporter interface {
	Status() string
}

// Connectivity reports whether an optional upstream is connected.
type Connectivity interface {
	IsConnected() bool
}

// HealthDeps lists what the health check inspects. Nil fields are reported
// as "not_configured".
type HealthDeps struct {
	TranscriptsDir string
	MQTT           Connectivity
	Tailer         StatusReporter
	Archive        bool
}

type HealthHandler struct {
	deps      HealthDeps
	version   string
	startTime time.Time
}

func NewHealthHandler(deps HealthDeps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{deps: deps, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Storage check: a missing directory is fine, it is created on first ingest.
	info, err := os.Stat(h.deps.TranscriptsDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		checks["storage"] = "not_created"
	case err != nil:
		checks["storage"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case !info.IsDir():
		checks["storage"] = "not_a_directory"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	default:
		checks["storage"] = "ok"
	}

	if h.deps.MQTT != nil {
		if h.deps.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	if h.deps.Tailer != nil {
		checks["live"] = h.deps.Tailer.Status()
	} else {
		checks["live"] = "not_configured"
	}

	if h.deps.Archive {
		checks["archive"] = "enabled"
	} else {
		checks["archive"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
