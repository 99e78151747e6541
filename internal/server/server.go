// Package server owns the status service listener and at most one accepted
// client connection.
//
// The channel is push-only: a connected client receives a status frame on
// every pump state change plus one frame with the latest state immediately
// after connecting. Nothing the client sends is interpreted; inbound traffic
// only matters for detecting that the peer went away. Delivery is
// best-effort with no backlog; a client that drops must reconnect and will
// then be pushed the current state again.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sump-sensor/internal/frame"
)

// DefaultAddr is the fixed service endpoint.
const DefaultAddr = ":10000"

// sendTimeout bounds how long one publish may block on a congested client.
// A live client drains a 12-byte frame immediately; a dead one is torn down
// after at most one bounded wait.
const sendTimeout = 100 * time.Millisecond

// Channel owns the listening socket and at most one client socket. All
// methods run on the single control goroutine; Channel is not safe for
// concurrent use.
type Channel struct {
	ln   *net.TCPListener
	conn *net.TCPConn
	log  zerolog.Logger
}

// Listen binds the IPv4 TCP listener. Bind or listen failure is fatal at
// startup; the daemon cannot serve without its endpoint.
func Listen(addr string, log zerolog.Logger) (*Channel, error) {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Channel{ln: ln.(*net.TCPListener), log: log}, nil
}

// Addr returns the bound listener address.
func (c *Channel) Addr() net.Addr {
	return c.ln.Addr()
}

// HasClient reports whether the client slot is populated.
func (c *Channel) HasClient() bool {
	return c.conn != nil
}

// Peer returns the remote address of the attached client, or "" when the
// slot is empty.
func (c *Channel) Peer() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// AcceptPending makes one non-blocking attempt to accept an inbound
// connection. On success the previous client, if any, is closed first, the
// latest state is pushed to the newcomer when one has ever been observed,
// and true is returned. Accept failures mean "no new client this cycle".
func (c *Channel) AcceptPending(current frame.Frame, observed bool) bool {
	// A near-immediate deadline turns Accept into a poll. It must lie in the
	// future: Go fails operations under an already-expired deadline without
	// attempting them, so a pending connection would never be picked up.
	if err := c.ln.SetDeadline(time.Now().Add(time.Millisecond)); err != nil {
		c.log.Warn().Err(err).Msg("set accept deadline failed")
		return false
	}

	conn, err := c.ln.AcceptTCP()
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			c.log.Warn().Err(err).Msg("accept failed")
		}
		return false
	}

	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn

	// Keep-alive is best effort; the cyclic liveness poll is what actually
	// detects a vanished peer.
	if err := conn.SetKeepAlive(true); err != nil {
		c.log.Warn().Err(err).Msg("set keep-alive failed")
	} else if err := conn.SetKeepAlivePeriod(5 * time.Second); err != nil {
		c.log.Warn().Err(err).Msg("set keep-alive period failed")
	}

	c.log.Info().Str("peer", conn.RemoteAddr().String()).Msg("new client")

	if observed {
		c.Publish(current)
	}
	return c.conn != nil
}

// CheckLiveness polls the client socket for closure. An orderly zero-length
// read means the peer closed; any other read error tears the slot down too.
// Bytes the client does send are drained and ignored. The poll is needed
// because the channel is send-only: without expected inbound traffic, a
// closed peer is otherwise only noticed on the next publish.
func (c *Channel) CheckLiveness() {
	if c.conn == nil {
		return
	}

	// As in AcceptPending, the poll deadline must lie slightly in the future
	// or the read is failed without ever touching the socket.
	if err := c.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		c.log.Warn().Err(err).Msg("set read deadline failed")
		return
	}

	var buf [64]byte
	_, err := c.conn.Read(buf[:])
	switch {
	case err == nil:
		// Clients are not supposed to talk. Drained and ignored.
	case errors.Is(err, os.ErrDeadlineExceeded):
		// Nothing pending; client alive.
	default:
		c.log.Info().Str("peer", c.conn.RemoteAddr().String()).Msg("client closed connection")
		c.dropClient()
	}
}

// Publish pushes one status frame to the attached client. A short write or
// send error closes the socket and empties the slot with a warning; the
// control loop is never affected. Returns true if the frame was fully sent.
func (c *Channel) Publish(f frame.Frame) bool {
	if c.conn == nil {
		return false
	}

	buf := frame.Encode(f)
	if err := c.conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		c.log.Warn().Err(err).Msg("set write deadline failed")
		c.dropClient()
		return false
	}

	n, err := c.conn.Write(buf)
	if err != nil || n != len(buf) {
		c.log.Warn().Err(err).Int("wrote", n).Msg("couldn't send to client, closing connection")
		c.dropClient()
		return false
	}
	return true
}

// Close tears down the client slot and the listener.
func (c *Channel) Close() error {
	c.dropClient()
	return c.ln.Close()
}

func (c *Channel) dropClient() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
