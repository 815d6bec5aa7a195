package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     WSMetrics         `json:"websocket"`
	Connection    ConnectionMetrics `json:"connection"`
	Keys          KeyMetrics        `json:"keys"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// ConnectionMetrics describes the billing session.
type ConnectionMetrics struct {
	State     string `json:"state"`
	Since     string `json:"since"`
	Attempts  uint64 `json:"attempts"`
	Failures  uint64 `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}

// KeyMetrics counts cached key statuses.
type KeyMetrics struct {
	Valid   int `json:"valid"`
	Blocked int `json:"blocked"`
}

// handleStatus returns connection, key store and runtime statistics.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.billing.Stats()
	valid, blocked := s.billing.KeyCounts()

	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Connection: ConnectionMetrics{
			State:     stats.State.String(),
			Since:     stats.Since.UTC().Format(time.RFC3339),
			Attempts:  stats.Attempts,
			Failures:  stats.Failures,
			LastError: stats.LastError,
		},
		Keys: KeyMetrics{
			Valid:   valid,
			Blocked: blocked,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}
