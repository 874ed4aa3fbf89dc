package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrConnect is matched by every error returned when a new connection
	// to the endpoint could not be established.
	ErrConnect = errors.New("pool: connect failed")

	// ErrTimeout is matched when a connect attempt or a capacity wait
	// exceeds its deadline.
	ErrTimeout = errors.New("pool: timeout")

	// ErrUnknownConn is returned by Release and Discard in strict mode when
	// the connection is not leased from this pool.
	ErrUnknownConn = errors.New("pool: unknown connection")

	// ErrInvalidConfig is returned by New for out-of-range settings.
	ErrInvalidConfig = errors.New("pool: invalid config")

	// ErrPoolClosed is returned by Acquire once the pool has been closed.
	ErrPoolClosed = errors.New("pool: closed")
)

// ConnectError reports a failed dial. Err holds the low-level cause
// (refused, timeout, generic socket error).
type ConnectError struct {
	Addr string
	Err  error
}

// Error returns the endpoint and the underlying cause, e.g.
// "pool: connect localhost:11211: dial tcp ...: connection refused".
func (e *ConnectError) Error() string {
	return fmt.Sprintf("pool: connect %s: %v", e.Addr, e.Err)
}

// Unwrap returns the low-level cause so errors.As can reach a *net.OpError.
func (e *ConnectError) Unwrap() error { return e.Err }

// Is lets callers test for ErrConnect, and for ErrTimeout when the dial
// ran out of time.
func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrConnect:
		return true
	case ErrTimeout:
		return isTimeout(e.Err)
	}
	return false
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
