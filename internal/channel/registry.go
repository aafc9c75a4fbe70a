package channel

import (
	"sync"
	"sync/atomic"
)

// Registry is the channel subscriber index: for each channel name it
// holds the set of subscribed connection ids. Reads (Subscribers) hold
// the read lock only for the map lookup and then load an immutable
// snapshot, so fan-out iterates without holding any lock;
// mutations (Subscribe/Unsubscribe) copy-on-write a new slice under a
// structural lock: snapshot-swap subscriber sets, generalized from
// *Client pointers to connection-id strings so the registry carries
// no transport-layer dependency.
type Registry struct {
	mu    sync.RWMutex
	chans map[string]*atomic.Value // channel name -> *[]string snapshot
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{chans: make(map[string]*atomic.Value)}
}

// Subscribe adds connID to channel's subscriber set. Idempotent: a
// connection already subscribed to channel is left unchanged.
func (r *Registry) Subscribe(channel, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.chans[channel]
	if !ok {
		v = &atomic.Value{}
		v.Store([]string{connID})
		r.chans[channel] = v
		return
	}

	cur := v.Load().([]string)
	for _, id := range cur {
		if id == connID {
			return
		}
	}
	next := make([]string, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, connID)
	v.Store(next)
}

// Unsubscribe removes connID from channel's subscriber set. When the
// set becomes empty the channel entry is dropped entirely, so Count
// and Subscribers agree that the channel no longer exists.
func (r *Registry) Unsubscribe(channel, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.chans[channel]
	if !ok {
		return
	}
	cur := v.Load().([]string)
	idx := -1
	for i, id := range cur {
		if id == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if len(cur) == 1 {
		delete(r.chans, channel)
		return
	}
	next := make([]string, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	v.Store(next)
}

// Subscribers returns a snapshot of channel's current subscriber ids.
// The returned slice is never mutated in place and is safe to range
// over without holding any lock; a concurrent Subscribe/Unsubscribe
// can never be observed mid-update.
func (r *Registry) Subscribers(channel string) []string {
	r.mu.RLock()
	v, ok := r.chans[channel]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return v.Load().([]string)
}

// Count returns the number of distinct channels with at least one
// subscriber.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chans)
}

// SubscriberCount returns the number of connections subscribed to
// channel, or 0 if the channel has none.
func (r *Registry) SubscriberCount(channel string) int {
	return len(r.Subscribers(channel))
}

// ChannelsFor returns every channel currently containing connID. This
// is an O(channels) scan used for diagnostics and tests; the hot
// teardown path does not call it — a connection's own
// subscribed-channel set (owned by its reader goroutine) already knows
// what to unsubscribe from in O(1) per channel.
func (r *Registry) ChannelsFor(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for name, v := range r.chans {
		for _, id := range v.Load().([]string) {
			if id == connID {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
