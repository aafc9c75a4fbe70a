// Package httpapi implements the auth token exchange and operator
// surface (C8): POST /auth, GET /health, GET /admin/stats. It is
// stateless with respect to the WebSocket dispatcher — it consumes
// StatsSource and ResourceSource interfaces rather than a shared
// global.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/relayhub/pusherd/internal/auth"
	"github.com/relayhub/pusherd/internal/platform"
	"github.com/relayhub/pusherd/internal/wsapi"
)

// StatsSource is the read-only view of dispatcher state the HTTP layer
// needs for /health and /admin/stats. *wsapi.Server satisfies it.
type StatsSource interface {
	Stats() wsapi.Stats
}

// ResourceSource is the read-only view of host resource sampling
// /health reports. *platform.ResourceMonitor satisfies it.
type ResourceSource interface {
	Snapshot() platform.ResourceSnapshot
}

// Config holds the HTTP surface's tunables.
type Config struct {
	AllowedOrigins []string // nil means "*"
}

// Server wires the gin router for the auth/health/admin surface.
type Server struct {
	cfg       Config
	signer    *auth.Signer
	dispatch  StatsSource
	resources ResourceSource
	startedAt time.Time
	logger    zerolog.Logger

	Engine *gin.Engine
}

// New builds a Server with its routes registered on a fresh gin
// engine in release mode rather than gin's noisy debug default.
func New(cfg Config, signer *auth.Signer, dispatch StatsSource, resources ResourceSource, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:       cfg,
		signer:    signer,
		dispatch:  dispatch,
		resources: resources,
		startedAt: time.Now(),
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.cors())
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	r.POST("/auth", s.handleAuth)
	r.GET("/health", s.handleHealth)
	r.GET("/admin/stats", s.handleAdminStats)

	s.Engine = r
	return s
}

// cors applies a permissive-by-default CORS policy, restricted to the
// configured allow list when one is set. OPTIONS requests are answered
// 204 with no body, per §4.7.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if s.originAllowed(origin) {
			allow := origin
			if allow == "" || len(s.cfg.AllowedOrigins) == 0 {
				allow = "*"
			}
			c.Header("Access-Control-Allow-Origin", allow)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
