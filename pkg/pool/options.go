package pool

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Default pool bounds.
const (
	DefaultMinSize        = 1
	DefaultMaxSize        = 10
	DefaultConnectTimeout = 5 * time.Second
)

// Dialer opens the network stream for a new Conn. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialFunc adapts a plain function to the Dialer interface.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext calls f(ctx, network, address).
func (f DialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Options holds the tunables applied by New.
type Options struct {
	MinSize        int
	MaxSize        int
	Network        string
	Dialer         Dialer
	ConnectTimeout time.Duration
	AcquireTimeout time.Duration // zero waits forever
	StrictRelease  bool
	Logger         *slog.Logger
}

// Option configures a Pool in New.
//
// Example:
//
//	p, err := pool.New("localhost", 11211,
//		pool.WithMinSize(2),
//		pool.WithMaxSize(8),
//		pool.WithLogger(logger),
//	)
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MinSize:        DefaultMinSize,
		MaxSize:        DefaultMaxSize,
		Network:        "tcp",
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// WithMinSize sets the number of idle connections kept warm on release.
func WithMinSize(n int) Option {
	return func(o *Options) { o.MinSize = n }
}

// WithMaxSize caps the total number of connections, idle and leased.
func WithMaxSize(n int) Option {
	return func(o *Options) { o.MaxSize = n }
}

// WithNetwork changes the dial network, "tcp" by default.
func WithNetwork(network string) Option {
	return func(o *Options) { o.Network = network }
}

// WithDialer replaces the default *net.Dialer.
func WithDialer(d Dialer) Option {
	return func(o *Options) { o.Dialer = d }
}

// WithConnectTimeout bounds each dial. Zero disables the bound.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithAcquireTimeout bounds how long Acquire waits for a free slot.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *Options) { o.AcquireTimeout = d }
}

// WithStrictRelease makes Release and Discard return ErrUnknownConn for
// connections that are not leased from the pool instead of ignoring them.
func WithStrictRelease(strict bool) Option {
	return func(o *Options) { o.StrictRelease = strict }
}

// WithLogger sets the logger for pool events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
