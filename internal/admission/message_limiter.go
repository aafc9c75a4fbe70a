package admission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// window is one connection's current fixed-window message count.
type window struct {
	start time.Time
	count int
}

// MessageLimiter enforces a fixed-window message rate per connection:
// each connection gets a budget of cap messages per windowDur; the
// window resets to a fresh count the instant it elapses, rather than
// continuously refilling like a token bucket. A connection that sends
// its (cap+1)th message inside the current window is over budget.
type MessageLimiter struct {
	mu        sync.Mutex
	cap       int
	windowDur time.Duration
	windows   map[string]*window
}

// NewMessageLimiter returns a limiter admitting at most cap messages
// per windowDur per connection id. A cap of 0 or less disables the
// limiter (always allows).
func NewMessageLimiter(cap int, windowDur time.Duration) *MessageLimiter {
	return &MessageLimiter{
		cap:       cap,
		windowDur: windowDur,
		windows:   make(map[string]*window),
	}
}

// Allow records one message attempt for connID and reports whether it
// is within the current window's budget. The first call for a
// connection (or the first call after its window has elapsed) opens a
// fresh window.
func (l *MessageLimiter) Allow(connID string) bool {
	if l.cap <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[connID]
	if !ok || now.Sub(w.start) >= l.windowDur {
		l.windows[connID] = &window{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= l.cap
}

// RemoveConnection drops connID's window, called on disconnect so the
// map doesn't retain state for connections that no longer exist.
func (l *MessageLimiter) RemoveConnection(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, connID)
}

// sweep removes windows that closed more than 2*windowDur ago, for
// connections that stopped sending without an orderly disconnect
// (e.g. a network partition where the client never sent a close
// frame). Returns the number of entries removed.
func (l *MessageLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := 2 * l.windowDur
	removed := 0
	now := time.Now()
	for id, w := range l.windows {
		if now.Sub(w.start.Add(l.windowDur)) > cutoff {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// TrackedConnections returns the number of connections with an open
// window, for tests and diagnostics.
func (l *MessageLimiter) TrackedConnections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartSweeper runs the stale-window sweep on interval until ctx is
// canceled. It is an explicit goroutine owned by the limiter's
// lifetime — not a package-init timer — so Server.Shutdown can stop it
// deterministically alongside every other background loop.
func (l *MessageLimiter) StartSweeper(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.sweep(); n > 0 {
					logger.Debug().Int("removed", n).Msg("swept stale rate-limit windows")
				}
			}
		}
	}()
}
