package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is used when an address carries no port.
const DefaultPort = 11211

const uriScheme = "memcached"

// ErrInvalidURI is returned for addresses ParseURI cannot read.
var ErrInvalidURI = errors.New("client: invalid uri")

// ParseURI splits "memcached://host[:port]" into host and port. The scheme is
// case-insensitive and a missing port means DefaultPort.
//
//	host, port, err := client.ParseURI("memcached://cache1.internal:11311")
func ParseURI(uri string) (string, int, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrInvalidURI, uri, err)
	}
	if !strings.EqualFold(u.Scheme, uriScheme) {
		return "", 0, fmt.Errorf("%w: %s: scheme must be %s://", ErrInvalidURI, uri, uriScheme)
	}
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return "", 0, fmt.Errorf("%w: %s: only host and port are allowed", ErrInvalidURI, uri)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", 0, fmt.Errorf("%w: %s: missing host", ErrInvalidURI, uri)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = parsePort(p)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %s: %v", ErrInvalidURI, uri, err)
		}
	}
	return host, port, nil
}

// splitAddress accepts either a memcached:// URI or a plain host:port.
func splitAddress(address string) (string, int, error) {
	if strings.Contains(address, "://") {
		return ParseURI(address)
	}

	host, p, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrInvalidURI, address, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("%w: %s: missing host", ErrInvalidURI, address)
	}
	port, err := parsePort(p)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrInvalidURI, address, err)
	}
	return host, port, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return port, nil
}
