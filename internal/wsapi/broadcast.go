package wsapi

import "github.com/relayhub/pusherd/internal/protocol"

// broadcastExcept sends env to every current subscriber of channelName
// except excludeID (pass "" to exclude no one). It snapshots the
// subscriber set before iterating so a concurrent unsubscribe can
// never be observed mid-fan-out, and tolerates a subscriber having
// disconnected between the snapshot and the send — a miss there is
// silently dropped, never retried or surfaced to the caller.
func (s *Server) broadcastExcept(channelName, excludeID string, env protocol.Envelope) {
	for _, id := range s.registry.Subscribers(channelName) {
		if id == excludeID {
			continue
		}
		v, ok := s.conns.Load(id)
		if !ok {
			continue
		}
		c := v.(*Connection)
		if !c.trySend(env) {
			// Enqueue failed (buffer full); writePump counts only
			// messages it actually writes, so record the miss here.
			s.metrics.MessagesDropped.WithLabelValues("buffer_full").Inc()
		}
	}
}

// BroadcastServerEvent implements §4.6.7: a server-initiated fan-out to
// every current subscriber of channelName, bypassing channel-type
// restrictions and the message rate limit — the server is trusted.
func (s *Server) BroadcastServerEvent(channelName, event string, data []byte) {
	s.broadcastExcept(channelName, "", protocol.Envelope{
		Event:   event,
		Data:    data,
		Channel: channelName,
	})
}
