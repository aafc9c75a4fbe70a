package wsapi

import (
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/relayhub/pusherd/internal/monitoring"
)

// readPump is the connection's single logical reader task: it
// deserializes frames and invokes handlers serially, single-writer on
// c.subscribed/c.presenceUser. There is deliberately no read deadline
// here — idle connections stay open; liveness is left to TCP
// keepalive and client-sent pusher:ping, matching the resource model
// this dispatcher implements.
func (s *Server) readPump(c *Connection) {
	defer s.wg.Done()
	defer monitoring.RecoverPanic(s.logger, "readPump", map[string]any{"conn_id": c.ID})

	reason := "read_error"
	defer func() { s.disconnect(c, reason) }()

	for {
		msg, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return
		}

		switch op {
		case ws.OpText:
			c.touch()
			s.handleFrame(c, msg)
		case ws.OpClose:
			reason = "client_close"
			return
		case ws.OpPing:
			// wsutil answers control-frame pings automatically.
		}

		if s.shuttingDown.Load() {
			reason = "server_shutdown"
			return
		}
	}
}

// writePump is the sole writer of c.conn: every outbound frame,
// whether from fan-out, a server event, or a direct reply, flows
// through c.send so only one goroutine ever touches the wire.
func (s *Server) writePump(c *Connection) {
	defer s.wg.Done()
	defer monitoring.RecoverPanic(s.logger, "writePump", map[string]any{"conn_id": c.ID})

	for message := range c.send {
		if err := wsutil.WriteServerMessage(c.conn, ws.OpText, message); err != nil {
			s.logger.Debug().Str("conn_id", c.ID).Err(err).Msg("write failed")
			// Force-close the raw connection so readPump's blocked read
			// unblocks with an error and drives teardown through its own
			// defer; writePump itself never calls disconnect, avoiding a
			// race between two goroutines tearing down the same
			// connection.
			c.closeConn()
			return
		}
		s.metrics.MessagesSent.Inc()
	}
}
