// Package client is a thin request/response layer over pkg/pool.
//
// It does not speak any particular cache protocol. It leases a connection,
// writes a command, reads CRLF-terminated lines until a terminator line, and
// gives the connection back, which is all a line-oriented protocol client
// (memcached text, Redis inline, and so on) needs from a pool.
//
// Basic Usage:
//
//	c, err := client.New("memcached://localhost:11211")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.Exec(ctx, []byte("get user:1\r\n"), []byte("END\r\n"))
//
// Custom exchanges use With, which guarantees the connection is returned:
//
//	err := c.With(ctx, func(conn *pool.Conn) error {
//		if _, err := conn.Write(req); err != nil {
//			return err
//		}
//		if err := conn.Flush(); err != nil {
//			return err
//		}
//		_, err := conn.Reader().ReadBytes('\n')
//		return err
//	})
//
// Connections whose stream failed (connect errors, timeouts, network errors,
// EOF) are discarded instead of returned to the idle set.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/cachemir/mcpool/pkg/config"
	"github.com/cachemir/mcpool/pkg/pool"
)

// Client owns one pool to a single endpoint. It is safe for concurrent use.
type Client struct {
	pool         *pool.Pool
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *slog.Logger
}

// New creates a Client for uri using default settings.
func New(uri string) (*Client, error) {
	cfg := config.DefaultClientConfig()
	cfg.URI = uri
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Client for cfg.URI. Extra pool options are applied
// after the ones derived from cfg, so tests can swap the dialer.
func NewWithConfig(cfg *config.ClientConfig, opts ...pool.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	host, port, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}
	return newClient(host, port, cfg, opts)
}

func newClient(host string, port int, cfg *config.ClientConfig, extra []pool.Option) (*Client, error) {
	logger := config.NewLogger(cfg.LogLevel)
	opts := []pool.Option{
		pool.WithLogger(logger),
		pool.WithMinSize(cfg.MinSize),
		pool.WithMaxSize(cfg.MaxSize),
		pool.WithConnectTimeout(time.Duration(cfg.ConnTimeout) * time.Second),
		pool.WithAcquireTimeout(time.Duration(cfg.AcquireTimeout) * time.Second),
		pool.WithStrictRelease(cfg.StrictRelease),
	}

	p, err := pool.New(host, port, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}

	return &Client{
		pool:         p,
		readTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		writeTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		log:          logger.With("component", "client", "addr", p.Addr()),
	}, nil
}

// Addr returns the endpoint in host:port form.
func (c *Client) Addr() string { return c.pool.Addr() }

// Pool exposes the underlying pool.
func (c *Client) Pool() *pool.Pool { return c.pool }

// Stats returns the pool counters.
func (c *Client) Stats() pool.Stats { return c.pool.Stats() }

// With leases a connection, runs fn on it and returns it to the pool, even
// when fn fails. A connection whose stream broke inside fn is discarded, as
// is one whose fn panicked; the panic is then propagated.
func (c *Client) With(ctx context.Context, fn func(*pool.Conn) error) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	returned := false
	defer func() {
		if !returned {
			c.putBack(conn, true)
		}
	}()

	err = fn(conn)
	returned = true
	if err != nil {
		c.putBack(conn, brokenStream(err))
		return err
	}
	return c.pool.Release(conn)
}

// putBack hands conn back to the pool, logging rather than returning the
// close error so the caller's own error wins.
func (c *Client) putBack(conn *pool.Conn, broken bool) {
	if broken {
		if err := c.pool.Discard(conn); err != nil {
			c.log.Warn("discard failed", "conn", conn.ID(), "err", err)
		}
		return
	}
	if err := c.pool.Release(conn); err != nil {
		c.log.Warn("release failed", "conn", conn.ID(), "err", err)
	}
}

// Exec writes cmd and reads the response line by line. Reading stops at the
// first line equal to one of endSymbols (terminators include their CRLF), or
// after a single line when no terminator is given. The returned bytes hold
// every line read, terminator included.
//
// Each line read has its own deadline. Read timeouts match pool.ErrTimeout;
// network failures match pool.ErrConnect.
func (c *Client) Exec(ctx context.Context, cmd []byte, endSymbols ...[]byte) ([]byte, error) {
	var resp []byte
	err := c.With(ctx, func(conn *pool.Conn) error {
		var err error
		resp, err = c.roundTrip(conn, cmd, endSymbols)
		return err
	})
	return resp, err
}

func (c *Client) roundTrip(conn *pool.Conn, cmd []byte, endSymbols [][]byte) ([]byte, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return nil, streamError("write", conn.Addr(), err)
	}
	if _, err := conn.Write(cmd); err != nil {
		return nil, streamError("write", conn.Addr(), err)
	}
	if err := conn.Flush(); err != nil {
		return nil, streamError("write", conn.Addr(), err)
	}

	var buf bytes.Buffer
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, streamError("read", conn.Addr(), err)
		}
		line, err := conn.Reader().ReadBytes('\n')
		if err != nil {
			return nil, streamError("read", conn.Addr(), err)
		}
		buf.Write(line)

		if len(endSymbols) == 0 || isTerminator(line, endSymbols) {
			return buf.Bytes(), nil
		}
	}
}

// Close closes the pool and every connection in it. Later calls fail with
// pool.ErrPoolClosed.
func (c *Client) Close() error {
	return c.pool.Close()
}

func isTerminator(line []byte, endSymbols [][]byte) bool {
	for _, end := range endSymbols {
		if bytes.Equal(line, end) {
			return true
		}
	}
	return false
}

// streamError reports a failure on an established stream as a
// *pool.ConnectError so callers handle it like a lost connection.
func streamError(op, addr string, err error) error {
	return &pool.ConnectError{Addr: addr, Err: fmt.Errorf("%s: %w", op, err)}
}

func brokenStream(err error) bool {
	if errors.Is(err, pool.ErrConnect) {
		return true
	}
	// context errors satisfy net.Error but say nothing about the stream
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
