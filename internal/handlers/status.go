package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusResponse is the public server overview.
type StatusResponse struct {
	Status      string         `json:"status"`
	Version     string         `json:"version"`
	Uptime      int64          `json:"uptime"` // ms
	Connections map[string]any `json:"connections"`
	ActiveRooms int            `json:"activeRooms"`
	Timestamp   int64          `json:"timestamp"`
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Status()
	agg := h.engine.StatsSnapshot()

	h.JSON(w, http.StatusOK, StatusResponse{
		Status:  "running",
		Version: version,
		Uptime:  stats.Uptime,
		Connections: map[string]any{
			"current":    stats.ActualConnections,
			"total":      stats.TotalConnections,
			"peak":       stats.PeakConnections,
			"registered": stats.RegisteredUsers,
			"teachers":   stats.TeacherMonitors,
		},
		ActiveRooms: agg.ActiveRooms,
		Timestamp:   time.Now().UnixMilli(),
	})
}

// ConfigResponse tells the browser client how to reach the server and
// which limits apply.
type ConfigResponse struct {
	WebSocketURL       string `json:"websocketUrl"`
	MaxUsersPerRoom    int    `json:"maxUsersPerRoom"`
	MaxRooms           int    `json:"maxRooms"`
	MaxConcurrentUsers int    `json:"maxConcurrentUsers"`
	AIEnabled          bool   `json:"aiEnabled"`
	Version            string `json:"version"`
}

// ClientConfig handles GET /api/config.
func (h *Handler) ClientConfig(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, ConfigResponse{
		WebSocketURL:       h.websocketURL(),
		MaxUsersPerRoom:    h.cfg.MaxUsersPerRoom,
		MaxRooms:           h.cfg.MaxRooms,
		MaxConcurrentUsers: h.cfg.MaxConcurrentUsers,
		AIEnabled:          h.cfg.AI.Enabled,
		Version:            version,
	})
}

func (h *Handler) websocketURL() string {
	if h.cfg.PublicURL == "" {
		return "/ws"
	}
	url := h.cfg.PublicURL
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return fmt.Sprintf("%s/ws", strings.TrimSuffix(url, "/"))
}
