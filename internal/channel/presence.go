package channel

import "sync"

// Member is a presence channel occupant: a user id plus arbitrary
// application-supplied info, taken verbatim from channel_data on
// subscribe.
type Member struct {
	UserID   string
	UserInfo map[string]any
}

// Presence tracks per-(channel,connection) membership for presence
// channels. A single user_id may hold several concurrent connections
// (multiple tabs/devices); membership is keyed by connection id so
// each connection's join/leave is independent, while Snapshot collapses
// to one entry per user_id the way a real Pusher client expects.
type Presence struct {
	mu      sync.RWMutex
	members map[string]map[string]Member // channel -> connID -> Member
}

// NewPresence returns an empty Presence registry.
func NewPresence() *Presence {
	return &Presence{members: make(map[string]map[string]Member)}
}

// Join records connID as a member of channel and returns the member
// count after the join. member_added is owed to every other current
// subscriber unconditionally — join/leave are per-connection events,
// not deduplicated by user_id (only the transmitted hash collapses by
// user_id, at Snapshot time).
func (p *Presence) Join(channel, connID string, m Member) (count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.members[channel]
	if !ok {
		set = make(map[string]Member)
		p.members[channel] = set
	}
	set[connID] = m
	return len(set)
}

// Leave removes connID from channel's membership. ok is false if the
// connection held no membership (e.g. unsubscribe from a non-presence
// channel, or double-removal).
func (p *Presence) Leave(channel, connID string) (m Member, ok bool, remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, exists := p.members[channel]
	if !exists {
		return Member{}, false, 0
	}
	m, ok = set[connID]
	if !ok {
		return Member{}, false, len(set)
	}
	delete(set, connID)
	remaining = len(set)
	if remaining == 0 {
		delete(p.members, channel)
	}
	return m, true, remaining
}

// Count returns the number of connections present on channel.
func (p *Presence) Count(channel string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members[channel])
}

// ChannelCount returns the number of presence channels with at least
// one member.
func (p *Presence) ChannelCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// Snapshot returns the Pusher-shaped presence data for channel: one
// hash entry per distinct user_id (last-writer-wins across that user's
// connections, matching real Pusher behavior when the same user holds
// multiple sockets) and a count of connections, not distinct users.
func (p *Presence) Snapshot(channel string) Data {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.members[channel]
	d := Data{Count: len(set)}
	d.Hash = make(map[string]map[string]any, len(set))
	for _, m := range set {
		d.Hash[m.UserID] = m.UserInfo
	}
	return d
}

// Data is the wire shape of a presence channel's member list, nested
// under the "presence" key of a pusher_internal:subscription_succeeded
// payload.
type Data struct {
	Count int                       `json:"count"`
	Hash  map[string]map[string]any `json:"hash"`
}
