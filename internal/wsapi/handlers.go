package wsapi

import (
	"encoding/json"

	"github.com/relayhub/pusherd/internal/channel"
	"github.com/relayhub/pusherd/internal/protocol"
)

// handleFrame is the single entry point for every inbound text frame,
// invoked serially by c's reader goroutine per the single-writer
// discipline documented on Connection. It decodes, charges the
// message-rate budget, then dispatches on event name per §4.6.2.
func (s *Server) handleFrame(c *Connection, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		c.trySend(protocol.NewError(protocol.ErrCodeInvalidJSON, "Invalid JSON format"))
		return
	}
	s.metrics.MessagesReceived.Inc()

	if !s.msgLimiter.Allow(c.ID) {
		s.metrics.RateLimited.Inc()
		c.trySend(protocol.NewError(protocol.ErrCodeRateLimited, "Rate limit exceeded"))
		return
	}

	switch env.Event {
	case protocol.EventSubscribe:
		s.handleSubscribe(c, env)
	case protocol.EventUnsubscribe:
		s.handleUnsubscribe(c, env)
	case protocol.EventPing:
		c.trySend(protocol.NewPong())
	default:
		s.handleClientEvent(c, env)
	}
}

// presenceChannelData is the shape of a presence subscribe's
// channel_data field: the only place this dispatcher decodes a nested
// JSON payload rather than treating it as opaque bytes.
type presenceChannelData struct {
	UserID   string         `json:"user_id"`
	UserInfo map[string]any `json:"user_info"`
}

// handleSubscribe implements §4.6.3. It is idempotent for a channel c
// is already subscribed to, enforces the per-connection channel cap
// and HMAC auth requirement, and for presence channels joins the
// presence registry and broadcasts member_added to every other current
// subscriber before returning.
func (s *Server) handleSubscribe(c *Connection, env protocol.Envelope) {
	name := env.Channel

	if !channel.Valid(name) {
		c.trySend(protocol.NewError(protocol.ErrCodeInvalidChannel, "Invalid channel name"))
		return
	}

	if len(c.subscribed) >= s.cfg.ChannelLimitPerConn {
		c.trySend(protocol.NewError(protocol.ErrCodeChannelQuota, "Channel limit exceeded"))
		return
	}

	if _, already := c.subscribed[name]; already {
		c.trySend(protocol.NewSubscriptionSucceeded(name, nil))
		return
	}

	if channel.RequiresAuth(name) {
		if env.Auth == "" || !s.signer.Verify(env.Auth, c.ID, name) {
			s.metrics.AuthFailures.Inc()
			c.trySend(protocol.NewError(protocol.ErrCodeAuthFailed, "Authentication failed"))
			return
		}
	}

	s.registry.Subscribe(name, c.ID)
	c.subscribed[name] = struct{}{}
	s.metrics.ChannelsActive.Set(float64(s.registry.Count()))

	if !channel.RequiresPresence(name) {
		c.trySend(protocol.NewSubscriptionSucceeded(name, nil))
		return
	}

	userID, userInfo, ok := parsePresenceChannelData(c.ID, env.ChannelData)
	if !ok {
		s.registry.Unsubscribe(name, c.ID)
		delete(c.subscribed, name)
		s.metrics.ChannelsActive.Set(float64(s.registry.Count()))
		c.trySend(protocol.NewError(protocol.ErrCodeInvalidChannelData, "Invalid channel_data"))
		return
	}

	c.presenceUser[name] = userID
	s.presence.Join(name, c.ID, channel.Member{UserID: userID, UserInfo: userInfo})
	s.metrics.PresenceChannelsActive.Set(float64(s.presence.ChannelCount()))

	c.trySend(protocol.NewSubscriptionSucceeded(name, s.presence.Snapshot(name)))
	s.broadcastExcept(name, c.ID, protocol.NewMemberAdded(name, userID, userInfo))
}

// parsePresenceChannelData decodes a presence subscribe's channel_data.
// An empty string is not a parse failure — it yields the fallback
// identity (connection id, empty user_info) per §4.6.3 step 6; any
// non-empty value that fails to unmarshal is, and ok is false.
func parsePresenceChannelData(connID, raw string) (userID string, userInfo map[string]any, ok bool) {
	if raw == "" {
		return connID, map[string]any{}, true
	}
	var payload presenceChannelData
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", nil, false
	}
	userID = payload.UserID
	if userID == "" {
		userID = connID
	}
	userInfo = payload.UserInfo
	if userInfo == nil {
		userInfo = map[string]any{}
	}
	return userID, userInfo, true
}

// handleUnsubscribe implements §4.6.4: a no-op if c was never
// subscribed, otherwise removes the subscription and, for a presence
// channel, the membership, broadcasting member_removed to whoever is
// left.
func (s *Server) handleUnsubscribe(c *Connection, env protocol.Envelope) {
	name := env.Channel
	if _, ok := c.subscribed[name]; !ok {
		return
	}

	delete(c.subscribed, name)
	s.registry.Unsubscribe(name, c.ID)
	s.metrics.ChannelsActive.Set(float64(s.registry.Count()))

	userID, isPresence := c.presenceUser[name]
	if !isPresence {
		return
	}
	delete(c.presenceUser, name)
	if _, left, _ := s.presence.Leave(name, c.ID); left {
		s.metrics.PresenceChannelsActive.Set(float64(s.presence.ChannelCount()))
		s.broadcastExcept(name, "", protocol.NewMemberRemoved(name, userID))
	}
}

// handleClientEvent implements §4.6.5: any event name not reserved by
// the protocol. Valid only on channels the sender is already
// subscribed to and only on public channels; on success the frame is
// re-emitted verbatim to every subscriber, including the sender
// itself.
func (s *Server) handleClientEvent(c *Connection, env protocol.Envelope) {
	name := env.Channel
	if name == "" || len(env.Data) == 0 {
		c.trySend(protocol.NewError(protocol.ErrCodeInvalidJSON, "Invalid client event"))
		return
	}

	if _, ok := c.subscribed[name]; !ok {
		c.trySend(protocol.NewError(protocol.ErrCodeNotSubscribed, "Not subscribed to channel"))
		return
	}

	if channel.Classify(name) != channel.TypePublic {
		c.trySend(protocol.NewError(protocol.ErrCodeClientEventDenied, "Client events not allowed on private/presence channels"))
		return
	}

	s.broadcastExcept(name, "", protocol.Envelope{
		Event:   env.Event,
		Data:    env.Data,
		Channel: name,
	})
}
