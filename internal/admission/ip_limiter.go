// Package admission implements connection- and message-level gates:
// a per-IP connection cap and a per-connection fixed-window message
// rate limiter. Both are plain counters, not token buckets — the
// teacher's rate limiters (golang.org/x/time/rate and a hand-rolled
// token bucket) smooth bursts over time; this protocol instead needs
// a hard, predictable cap so clients get a deterministic answer to
// "how many messages can I send this second."
package admission

import "sync"

// IPLimiter enforces a maximum number of concurrent connections per
// source IP. It is a strict counter: CanConnect reports true iff the
// current count for ip is below cap, with no refill or smoothing.
type IPLimiter struct {
	mu     sync.Mutex
	cap    int
	counts map[string]int
}

// NewIPLimiter returns a limiter admitting at most cap connections
// per IP. A cap of 0 or less disables the limiter (always admits).
func NewIPLimiter(cap int) *IPLimiter {
	return &IPLimiter{cap: cap, counts: make(map[string]int)}
}

// CanConnect reports whether ip is currently below its connection cap.
func (l *IPLimiter) CanConnect(ip string) bool {
	if l.cap <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ip] < l.cap
}

// AddConnection records a new connection from ip. Callers must call
// this only after CanConnect returned true and the connection was
// actually admitted, to keep the count accurate.
func (l *IPLimiter) AddConnection(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[ip]++
}

// RemoveConnection records that a connection from ip has closed. The
// entry is deleted once it reaches zero so the map never grows
// unbounded with IPs that no longer have any open connection.
func (l *IPLimiter) RemoveConnection(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counts[ip]
	if !ok {
		return
	}
	if c <= 1 {
		delete(l.counts, ip)
		return
	}
	l.counts[ip] = c - 1
}

// Count returns the current connection count for ip, for tests and
// diagnostics.
func (l *IPLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ip]
}

// TrackedIPs returns the number of distinct IPs with at least one
// open connection.
func (l *IPLimiter) TrackedIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}
