package client

import (
	"errors"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri  string
		host string
		port int
	}{
		{"memcached://localhost:11211", "localhost", 11211},
		{"memcached://localhost", "localhost", DefaultPort},
		{"MEMCACHED://Cache-1.Internal:11311", "cache-1.internal", 11311},
		{"memcached://127.0.0.1:2000/", "127.0.0.1", 2000},
		{"memcached://[::1]:11211", "::1", 11211},
	}

	for _, tt := range tests {
		host, port, err := ParseURI(tt.uri)
		if err != nil {
			t.Errorf("ParseURI(%q) failed: %v", tt.uri, err)
			continue
		}
		if host != tt.host || port != tt.port {
			t.Errorf("ParseURI(%q) = %s:%d, want %s:%d", tt.uri, host, port, tt.host, tt.port)
		}
	}
}

func TestParseURIInvalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"localhost:11211",
		"redis://localhost:6379",
		"memcached://",
		"memcached://localhost:0",
		"memcached://localhost:99999",
		"memcached://localhost:abc",
		"memcached://user@localhost",
		"memcached://localhost/db",
	} {
		if _, _, err := ParseURI(uri); !errors.Is(err, ErrInvalidURI) {
			t.Errorf("ParseURI(%q) = %v, want ErrInvalidURI", uri, err)
		}
	}
}

func TestSplitAddress(t *testing.T) {
	host, port, err := splitAddress("cache1:11311")
	if err != nil || host != "cache1" || port != 11311 {
		t.Errorf("Unexpected split: %s:%d (error: %v)", host, port, err)
	}
	host, port, err = splitAddress("memcached://cache2")
	if err != nil || host != "cache2" || port != DefaultPort {
		t.Errorf("Unexpected split: %s:%d (error: %v)", host, port, err)
	}
	for _, bad := range []string{"cache1", ":11211", "cache1:0"} {
		if _, _, err := splitAddress(bad); !errors.Is(err, ErrInvalidURI) {
			t.Errorf("splitAddress(%q) = %v, want ErrInvalidURI", bad, err)
		}
	}
}
