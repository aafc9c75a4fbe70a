package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// authRequest is the body of POST /auth, per §4.7. The
// endpoint is stateless: it never checks that socket_id names a
// connection that actually exists — the binding to a live connection
// is enforced later, at subscribe time, by auth.Signer.Verify.
type authRequest struct {
	SocketID    string `json:"socket_id" binding:"required"`
	ChannelName string `json:"channel_name" binding:"required"`
	ChannelData string `json:"channel_data"`
}

type authResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

func (s *Server) handleAuth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "socket_id and channel_name are required"})
		return
	}

	c.JSON(http.StatusOK, authResponse{
		Auth:        s.signer.Token(req.SocketID, req.ChannelName),
		ChannelData: req.ChannelData,
	})
}

type healthStats struct {
	Connections      int `json:"connections"`
	Channels         int `json:"channels"`
	PresenceChannels int `json:"presenceChannels"`
}

type resourceStats struct {
	CPUPercent       float64 `json:"cpuPercent"`
	MemoryUsedBytes  uint64  `json:"memoryUsedBytes"`
	MemoryTotalBytes uint64  `json:"memoryTotalBytes"`
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.dispatch.Stats()

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"stats": healthStats{
			Connections:      stats.Connections,
			Channels:         stats.Channels,
			PresenceChannels: stats.PresenceChannels,
		},
	}
	if s.resources != nil {
		snap := s.resources.Snapshot()
		body["resources"] = resourceStats{
			CPUPercent:       snap.CPUPercent,
			MemoryUsedBytes:  snap.MemoryUsedBytes,
			MemoryTotalBytes: snap.MemoryTotalBytes,
		}
	}
	c.JSON(http.StatusOK, body)
}

// handleAdminStats serves operator-facing counters beyond /health's
// summary: per-reason disconnect and admission-rejection tallies. It
// is not itself authenticated — §4.7 expects this endpoint to sit
// behind external auth (a reverse proxy or gateway) in production.
func (s *Server) handleAdminStats(c *gin.Context) {
	stats := s.dispatch.Stats()

	body := gin.H{
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"connections":         stats.Connections,
		"channels":            stats.Channels,
		"presenceChannels":    stats.PresenceChannels,
		"uptimeSeconds":       time.Since(s.startedAt).Seconds(),
		"disconnects":         stats.Disconnects,
		"admissionRejections": stats.AdmissionRejections,
	}
	if s.resources != nil {
		snap := s.resources.Snapshot()
		body["resources"] = resourceStats{
			CPUPercent:       snap.CPUPercent,
			MemoryUsedBytes:  snap.MemoryUsedBytes,
			MemoryTotalBytes: snap.MemoryTotalBytes,
		}
	}
	c.JSON(http.StatusOK, body)
}
