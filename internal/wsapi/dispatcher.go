// Package wsapi implements the connection dispatcher: WebSocket
// upgrade and admission, per-connection read/write pumps, inbound
// frame routing, fan-out, presence join/leave, and teardown.
package wsapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/relayhub/pusherd/internal/admission"
	"github.com/relayhub/pusherd/internal/auth"
	"github.com/relayhub/pusherd/internal/channel"
	"github.com/relayhub/pusherd/internal/monitoring"
	"github.com/relayhub/pusherd/internal/protocol"
)

// sweepInterval is how often the message-rate limiter scans for stale
// windows, per the "periodic sweeper (~every 5 minutes)" resource
// model in the admission design.
const sweepInterval = 5 * time.Minute

// Config holds the dispatcher's tunables, sourced from platform.Config
// by the caller so this package stays decoupled from env parsing.
type Config struct {
	Path                   string
	AllowedOrigins         []string // nil means allow every origin
	ChannelLimitPerConn    int
	ActivityTimeoutSeconds int
	SendBufferSize         int
	ShutdownGracePeriod    time.Duration
}

// Stats is a read-only snapshot of dispatcher state, consumed by the
// HTTP layer through an interface it defines itself — replacing the
// global stats lookup a tighter HTTP/WS coupling would otherwise need.
type Stats struct {
	Connections         int
	Channels            int
	PresenceChannels    int
	Disconnects         map[string]int64
	AdmissionRejections map[string]int64
}

// Server is the connection dispatcher (C7): it owns the connection
// table and coordinates the registries, admission limiter, and auth
// primitive injected into it, per the constructor-injection design
// note replacing the reference implementation's process-wide
// singletons.
type Server struct {
	cfg Config

	registry   *channel.Registry
	presence   *channel.Presence
	signer     *auth.Signer
	ipLimiter  *admission.IPLimiter
	msgLimiter *admission.MessageLimiter
	metrics    *monitoring.Metrics
	logger     zerolog.Logger

	conns sync.Map // connID string -> *Connection

	disconnectCounts sync.Map // reason string -> *atomic.Int64
	rejectionCounts  sync.Map // reason string -> *atomic.Int64

	shuttingDown atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewServer wires a dispatcher from its already-constructed
// dependencies.
func NewServer(
	cfg Config,
	registry *channel.Registry,
	presence *channel.Presence,
	signer *auth.Signer,
	ipLimiter *admission.IPLimiter,
	msgLimiter *admission.MessageLimiter,
	metrics *monitoring.Metrics,
	logger zerolog.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		registry:   registry,
		presence:   presence,
		signer:     signer,
		ipLimiter:  ipLimiter,
		msgLimiter: msgLimiter,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start begins the background sweeper that evicts stale rate-limit
// windows. It must be called once before HandleUpgrade serves traffic.
func (s *Server) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.msgLimiter.StartSweeper(s.ctx, sweepInterval, s.logger)
}

// HandleUpgrade is the http.HandlerFunc mounted at the configured
// WebSocket path.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ip := remoteIP(r)

	if !s.originAllowed(r.Header.Get("Origin")) {
		s.recordRejection("origin_denied")
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote_ip", ip).Msg("websocket upgrade failed")
		return
	}

	if !s.ipLimiter.CanConnect(ip) {
		s.recordRejection("ip_connection_limit")
		s.closeWithCode(conn, ws.StatusPolicyViolation, "Connection limit exceeded")
		return
	}
	s.ipLimiter.AddConnection(ip)

	c := newConnection(ip, conn, s.cfg.SendBufferSize)
	s.conns.Store(c.ID, c)

	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	s.logger.Info().Str("conn_id", c.ID).Int64("seq", c.nextSeq()).Str("remote_ip", ip).Msg("connection admitted")

	c.trySend(protocol.NewConnectionEstablished(c.ID, s.cfg.ActivityTimeoutSeconds))

	s.wg.Add(2)
	go s.writePump(c)
	go s.readPump(c)
}

// originAllowed reports whether origin passes the configured allow
// list. An empty allow list (the "*" default) admits everything.
func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) closeWithCode(conn net.Conn, code ws.StatusCode, reason string) {
	body := ws.NewCloseFrameBody(code, reason)
	_ = wsutil.WriteServerMessage(conn, ws.OpClose, body)
	conn.Close()
}

// remoteIP derives the client's address per the admission spec: the
// first entry of X-Forwarded-For when present, else the transport
// remote address.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// disconnect performs full teardown for c, per §4.6.6: it unwinds
// every channel subscription (and any presence membership) before
// removing the connection from the table and releasing its admission
// slots. Teardown completes even if an individual broadcast fails.
func (s *Server) disconnect(c *Connection, reason string) {
	if _, loaded := s.conns.Load(c.ID); !loaded {
		return // already torn down
	}

	for name := range c.subscribed {
		s.registry.Unsubscribe(name, c.ID)
		if userID, ok := c.presenceUser[name]; ok {
			if _, left, _ := s.presence.Leave(name, c.ID); left {
				s.metrics.PresenceChannelsActive.Set(float64(s.presence.ChannelCount()))
				s.broadcastExcept(name, "", protocol.NewMemberRemoved(name, userID))
			}
		}
	}
	s.metrics.ChannelsActive.Set(float64(s.registry.Count()))

	s.conns.Delete(c.ID)

	s.ipLimiter.RemoveConnection(c.RemoteIP)
	s.msgLimiter.RemoveConnection(c.ID)

	c.closeConn()
	c.closeSend()

	s.metrics.ConnectionsActive.Dec()
	s.incrCounter(&s.disconnectCounts, reason)
	s.metrics.Disconnects.WithLabelValues(reason).Inc()
	s.logger.Info().Str("conn_id", c.ID).Int64("seq", c.nextSeq()).Str("reason", reason).Msg("connection closed")
}

func (s *Server) recordRejection(reason string) {
	s.incrCounter(&s.rejectionCounts, reason)
	s.metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
}

func (s *Server) incrCounter(m *sync.Map, key string) {
	v, _ := m.LoadOrStore(key, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func snapshotCounters(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// Stats returns a point-in-time snapshot of dispatcher state for the
// HTTP surface's /health and /admin/stats endpoints.
func (s *Server) Stats() Stats {
	connCount := 0
	s.conns.Range(func(_, _ any) bool { connCount++; return true })

	return Stats{
		Connections:         connCount,
		Channels:            s.registry.Count(),
		PresenceChannels:    s.countPresenceChannels(),
		Disconnects:         snapshotCounters(&s.disconnectCounts),
		AdmissionRejections: snapshotCounters(&s.rejectionCounts),
	}
}

func (s *Server) countPresenceChannels() int {
	return s.presence.ChannelCount()
}

// Shutdown closes every open connection with close code 1001 and
// reason "Server shutting down", per §4.6.8, then waits up to
// ShutdownGracePeriod for pumps to exit cleanly before returning.
func (s *Server) Shutdown(ctx context.Context) {
	s.shuttingDown.Store(true)

	s.conns.Range(func(_, v any) bool {
		c := v.(*Connection)
		s.closeWithCode(c.conn, ws.StatusGoingAway, "Server shutting down")
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.ShutdownGracePeriod)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn().Msg("shutdown grace period elapsed, forcing remaining connections closed")
		s.conns.Range(func(_, v any) bool {
			v.(*Connection).closeConn()
			return true
		})
	case <-ctx.Done():
	}

	if s.cancel != nil {
		s.cancel()
	}
}
