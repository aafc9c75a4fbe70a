package wsapi

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/relayhub/pusherd/internal/protocol"
)

// Connection is the dispatcher's view of one upgraded WebSocket. Its
// subscribed and presenceUser maps are mutated only by the reader
// goroutine that owns this connection's inbound stream — the
// single-writer discipline the registries above it rely on — while
// send accepts writes from any goroutine (fan-out, server events).
type Connection struct {
	ID        string
	RemoteIP  string
	createdAt time.Time

	conn net.Conn
	send chan []byte

	lastActivityAt atomic.Int64 // unix nano, read from any goroutine
	seq            atomic.Int64 // per-connection log correlation counter, never on the wire

	subscribed   map[string]struct{}
	presenceUser map[string]string // presence channel name -> user_id this conn joined as

	closeOnce sync.Once

	sendMu sync.RWMutex // guards send against close-while-sending
	closed bool
}

// nextSeq returns a monotonically increasing counter for this
// connection, used only to correlate log lines for a single connection
// across goroutines. It never appears in the wire protocol.
func (c *Connection) nextSeq() int64 {
	return c.seq.Add(1)
}

// newSocketID mints a socket id of the form <unix_ms>.<random-suffix>,
// unique for the process lifetime. The random suffix comes from
// google/uuid rather than a hand-rolled crypto/rand hex string.
func newSocketID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "." + uuid.NewString()[:8]
}

func newConnection(remoteIP string, conn net.Conn, sendBuf int) *Connection {
	c := &Connection{
		ID:           newSocketID(),
		RemoteIP:     remoteIP,
		createdAt:    time.Now(),
		conn:         conn,
		send:         make(chan []byte, sendBuf),
		subscribed:   make(map[string]struct{}),
		presenceUser: make(map[string]string),
	}
	c.touch()
	return c
}

func (c *Connection) touch() {
	c.lastActivityAt.Store(time.Now().UnixNano())
}

// LastActivity returns the last time a frame was received from this
// connection, safe to call from any goroutine.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivityAt.Load())
}

// trySend encodes env and enqueues it for delivery. It never blocks: a
// full send buffer means this connection is slow, and per the
// best-effort backpressure policy the frame is dropped rather than
// stalling the sender on its behalf.
func (c *Connection) trySend(env protocol.Envelope) bool {
	raw, err := env.Encode()
	if err != nil {
		return false
	}
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

// closeSend marks the connection closed and closes its send channel,
// signaling writePump to exit. Guarded by sendMu so a concurrent
// trySend either completes before the close or observes closed and
// never touches the channel — closing a channel a live sender is
// writing to would panic.
func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Connection) closeConn() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
