package pool

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Conn is one live stream to the pool's endpoint.
//
// A Conn is borrowed: it is handed out by Pool.Acquire and must be given back
// with Pool.Release (or Pool.Discard once the stream is broken). Callers
// frame requests and responses on Reader and Writer themselves; they must
// never close the underlying net.Conn.
type Conn struct {
	id        string
	addr      string
	netConn   net.Conn
	r         *bufio.Reader
	w         *bufio.Writer
	createdAt time.Time
	inUse     atomic.Bool
}

func newConn(nc net.Conn, addr string) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		addr:      addr,
		netConn:   nc,
		r:         bufio.NewReader(nc),
		w:         bufio.NewWriter(nc),
		createdAt: time.Now(),
	}
}

// ID returns a unique identifier, handy for log correlation.
func (c *Conn) ID() string { return c.id }

// Addr returns the remote endpoint in host:port form.
func (c *Conn) Addr() string { return c.addr }

// CreatedAt returns when the stream was dialed.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// InUse reports whether the connection is currently leased.
func (c *Conn) InUse() bool { return c.inUse.Load() }

// Reader returns the buffered read half of the stream.
func (c *Conn) Reader() *bufio.Reader { return c.r }

// Writer returns the buffered write half of the stream. Call Flush after
// writing a request.
func (c *Conn) Writer() *bufio.Writer { return c.w }

// Read reads response bytes through the buffered reader.
func (c *Conn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Write buffers request bytes. They are sent on Flush or when the buffer
// fills up.
func (c *Conn) Write(p []byte) (int, error) { return c.w.Write(p) }

// Flush sends any buffered request bytes.
func (c *Conn) Flush() error { return c.w.Flush() }

// SetDeadline sets the read and write deadlines of the underlying stream.
func (c *Conn) SetDeadline(t time.Time) error { return c.netConn.SetDeadline(t) }

// SetReadDeadline sets the deadline for future Read calls.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.netConn.SetReadDeadline(t) }

// SetWriteDeadline sets the deadline for future Write and Flush calls.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.netConn.SetWriteDeadline(t) }

// close signals end of input on the read half when the transport allows it,
// then closes the socket. The pool calls it at most once per Conn.
func (c *Conn) close() error {
	if cr, ok := c.netConn.(interface{ CloseRead() error }); ok {
		_ = cr.CloseRead()
	}
	return c.netConn.Close()
}
