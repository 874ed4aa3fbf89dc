// Package pool implements a bounded pool of reusable network connections to
// a single endpoint.
//
// The pool is protocol-agnostic: it dials, lends and recycles byte streams
// and never looks at payload bytes. A protocol client built on top acquires
// a connection, frames its request and response on the connection's reader
// and writer, and releases it again.
//
// Sizing:
//   - At most MaxSize connections (idle plus leased) exist at any time.
//     Acquire blocks while all of them are leased.
//   - On release, connections above MinSize are closed; the rest stay warm.
//   - Connections are created lazily, on the first Acquire that finds no
//     idle connection.
//
// Example:
//
//	p, err := pool.New("localhost", 11211, pool.WithMinSize(1), pool.WithMaxSize(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer p.Release(conn)
//
//	conn.Write([]byte("version\r\n"))
//	conn.Flush()
//	line, err := conn.Reader().ReadString('\n')
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool owns every Conn it creates to one host:port endpoint.
//
// Acquire, Release, Discard, Clear and Close are safe for concurrent use.
// All changes to the connection ring and to the in-use flags are serialized
// by one mutex; sockets are dialed and closed outside it. Capacity is
// tracked by a counting semaphore holding one unit per leased (or being
// dialed) connection.
type Pool struct {
	addr string
	opts Options
	log  *slog.Logger

	sem *semaphore.Weighted // one unit per leased or dialing connection

	mu     sync.Mutex
	conns  []*Conn // ring; conns[0] is the front
	closed bool

	created       atomic.Int64
	closes        atomic.Int64
	connectErrors atomic.Int64
	waits         atomic.Int64
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Size          int   // connections held, idle and leased
	Idle          int   // connections ready for Acquire
	InUse         int   // connections currently leased
	Created       int64 // successful dials since New
	Closed        int64 // connections closed by Release, Discard, Clear or Close
	ConnectErrors int64 // failed dials since New
	Waits         int64 // Acquire calls that had to wait for capacity
}

// New creates an empty pool for host:port. No connection is opened until the
// first Acquire.
//
// Example:
//
//	p, err := pool.New("cache1.internal", 11211,
//		pool.WithMaxSize(16),
//		pool.WithAcquireTimeout(2*time.Second),
//	)
//
// Returns ErrInvalidConfig when host is empty, the port is outside
// 1..65535, or the bounds do not satisfy 0 <= MinSize <= MaxSize, MaxSize >= 1.
func New(host string, port int, opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidConfig)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, port)
	}
	if o.MaxSize < 1 {
		return nil, fmt.Errorf("%w: max size must be positive: %d", ErrInvalidConfig, o.MaxSize)
	}
	if o.MinSize < 0 || o.MinSize > o.MaxSize {
		return nil, fmt.Errorf("%w: min size %d not in [0, %d]", ErrInvalidConfig, o.MinSize, o.MaxSize)
	}
	if o.Network == "" {
		o.Network = "tcp"
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{}
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return &Pool{
		addr: addr,
		opts: o,
		log:  logger.With("component", "pool", "addr", addr),
		sem:  semaphore.NewWeighted(int64(o.MaxSize)),
	}, nil
}

// Addr returns the endpoint in host:port form.
func (p *Pool) Addr() string { return p.addr }

// MinSize returns the idle floor kept on release.
func (p *Pool) MinSize() int { return p.opts.MinSize }

// MaxSize returns the ceiling on held connections.
func (p *Pool) MaxSize() int { return p.opts.MaxSize }

// Size returns the number of connections held by the pool, idle and leased.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Acquire leases a connection, reusing an idle one when possible and dialing
// a new one otherwise.
//
// The steps are:
//  1. Wait for capacity. While MaxSize connections are leased, Acquire blocks
//     until one is released, ctx is done, or the acquire timeout elapses.
//  2. Take the first idle connection from the front of the ring, mark it
//     in use and rotate it to the back, so reuse is round-robin.
//  3. With no idle connection, dial the endpoint. Dial failures are returned
//     as *ConnectError and leave the pool unchanged; they are not retried.
//
// The returned Conn is not handed to anyone else until it is released.
// After Close, Acquire returns ErrPoolClosed.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.isClosed() {
		return nil, p.closedError()
	}
	if err := p.reserve(ctx); err != nil {
		return nil, err
	}

	c, err := p.takeIdle()
	if err != nil || c != nil {
		return c, err
	}

	c, err = p.dial(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		_ = p.closeConn(c)
		return nil, p.closedError()
	}
	p.conns = append(p.conns, c)
	p.mu.Unlock()

	return c, nil
}

// Release gives a leased connection back.
//
// If the pool holds more than MinSize connections the connection is closed
// and dropped, otherwise it becomes idle for the next Acquire. Releasing a
// connection that is not leased from this pool (already released, discarded,
// cleared, or foreign) does nothing, unless the pool was built with
// WithStrictRelease, in which case ErrUnknownConn is returned.
//
// The error from closing a dropped connection is returned as is.
func (p *Pool) Release(c *Conn) error {
	p.mu.Lock()
	i := p.leasedIndex(c)
	if i < 0 {
		p.mu.Unlock()
		return p.unknown(c)
	}

	if len(p.conns) <= p.opts.MinSize {
		c.inUse.Store(false)
		p.mu.Unlock()
		p.sem.Release(1)
		return nil
	}

	p.remove(i)
	c.inUse.Store(false)
	size := len(p.conns)
	p.mu.Unlock()
	p.sem.Release(1)

	p.log.Debug("closing surplus connection", "conn", c.id, "size", size)
	return p.closeConn(c)
}

// Discard drops a leased connection regardless of MinSize. Use it instead of
// Release when the stream is known to be broken, e.g. after an I/O error in
// the middle of a response.
func (p *Pool) Discard(c *Conn) error {
	p.mu.Lock()
	i := p.leasedIndex(c)
	if i < 0 {
		p.mu.Unlock()
		return p.unknown(c)
	}
	p.remove(i)
	c.inUse.Store(false)
	p.mu.Unlock()
	p.sem.Release(1)

	p.log.Debug("discarding connection", "conn", c.id)
	return p.closeConn(c)
}

// Clear closes every connection, idle or leased, and empties the pool.
// Connections are detached under the lock and then closed one at a time
// from the back of the ring. Leased connections give their capacity back
// immediately; releasing them later is a no-op. The pool stays usable and
// grows again on the next Acquire.
func (p *Pool) Clear() error {
	p.mu.Lock()
	conns := p.detach()
	p.mu.Unlock()

	return p.closeAll(conns)
}

// Close clears the pool and stops it from growing again. Acquire calls
// made afterwards, including ones waiting for capacity or dialing, fail
// with ErrPoolClosed. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	conns := p.detach()
	p.mu.Unlock()

	return p.closeAll(conns)
}

// detach empties the ring and returns capacity held by leased members.
// Callers hold p.mu.
func (p *Pool) detach() []*Conn {
	conns := p.conns
	p.conns = nil

	var leased int64
	for _, c := range conns {
		if c.inUse.Swap(false) {
			leased++
		}
	}
	if leased > 0 {
		p.sem.Release(leased)
	}
	return conns
}

func (p *Pool) closeAll(conns []*Conn) error {
	var errs []error
	for len(conns) > 0 {
		c := conns[len(conns)-1]
		conns = conns[:len(conns)-1]
		if err := p.closeConn(c); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		p.log.Warn("errors while clearing pool", "count", len(errs))
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	size := len(p.conns)
	inUse := 0
	for _, c := range p.conns {
		if c.inUse.Load() {
			inUse++
		}
	}
	p.mu.Unlock()

	return Stats{
		Size:          size,
		Idle:          size - inUse,
		InUse:         inUse,
		Created:       p.created.Load(),
		Closed:        p.closes.Load(),
		ConnectErrors: p.connectErrors.Load(),
		Waits:         p.waits.Load(),
	}
}

// reserve takes one unit of capacity.
func (p *Pool) reserve(ctx context.Context) error {
	if p.sem.TryAcquire(1) {
		return nil
	}
	p.waits.Add(1)

	if p.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("pool: acquire %s: %w: %w", p.addr, ErrTimeout, err)
		}
		return fmt.Errorf("pool: acquire %s: %w", p.addr, err)
	}
	return nil
}

// takeIdle leases the idle connection closest to the front of the ring and
// rotates it to the back. Returns nil when every held connection is leased.
// The reserved capacity unit is given back when the pool was closed.
func (p *Pool) takeIdle() (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.sem.Release(1)
		return nil, p.closedError()
	}
	for i, c := range p.conns {
		if c.inUse.Load() {
			continue
		}
		c.inUse.Store(true)
		p.remove(i)
		p.conns = append(p.conns, c)
		return c, nil
	}
	return nil, nil
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	if p.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ConnectTimeout)
		defer cancel()
	}

	nc, err := p.opts.Dialer.DialContext(ctx, p.opts.Network, p.addr)
	if err != nil {
		p.connectErrors.Add(1)
		p.log.Warn("connect failed", "err", err)
		return nil, &ConnectError{Addr: p.addr, Err: err}
	}

	c := newConn(nc, p.addr)
	c.inUse.Store(true)
	p.created.Add(1)
	p.log.Debug("connection opened", "conn", c.id)
	return c, nil
}

// leasedIndex returns the ring position of c, or -1 when c is not a leased
// member of this pool. Callers hold p.mu.
func (p *Pool) leasedIndex(c *Conn) int {
	if c == nil || !c.inUse.Load() {
		return -1
	}
	for i, held := range p.conns {
		if held == c {
			return i
		}
	}
	return -1
}

// remove deletes the ring entry at i. Callers hold p.mu.
func (p *Pool) remove(i int) {
	copy(p.conns[i:], p.conns[i+1:])
	p.conns[len(p.conns)-1] = nil
	p.conns = p.conns[:len(p.conns)-1]
}

func (p *Pool) closeConn(c *Conn) error {
	c.inUse.Store(false)
	p.closes.Add(1)
	if err := c.close(); err != nil {
		return fmt.Errorf("pool: close %s: %w", c.id, err)
	}
	return nil
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) closedError() error {
	return fmt.Errorf("pool: acquire %s: %w", p.addr, ErrPoolClosed)
}

func (p *Pool) unknown(c *Conn) error {
	if !p.opts.StrictRelease {
		return nil
	}
	if c == nil {
		return fmt.Errorf("%w: nil", ErrUnknownConn)
	}
	return fmt.Errorf("%w: %s", ErrUnknownConn, c.id)
}
