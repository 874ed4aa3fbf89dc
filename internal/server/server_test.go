package server

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/cachemir/mcpool/pkg/config"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	s := New(&config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5,
		WriteTimeout: 5,
		LogLevel:     "error",
	})
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		s.Stop()
		if err := <-done; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return s
}

func TestServerEcho(t *testing.T) {
	s := startTestServer(t)

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(conn)
	for _, req := range []string{"hello\r\n", "get key\r\n"} {
		if _, err := io.WriteString(conn, req); err != nil {
			t.Fatal(err)
		}
		line, err := r.ReadString('\n')
		if err != nil || line != req {
			t.Fatalf("Expected echo %q, got %q (error: %v)", req, line, err)
		}
		end, err := r.ReadString('\n')
		if err != nil || end != Terminator {
			t.Fatalf("Expected terminator, got %q (error: %v)", end, err)
		}
	}
}

func TestServerQuit(t *testing.T) {
	s := startTestServer(t)

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	io.WriteString(conn, "quit\r\n")
	if _, err := bufio.NewReader(conn).ReadString('\n'); err != io.EOF {
		t.Errorf("Expected EOF after quit, got %v", err)
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	s := New(&config.ServerConfig{Host: "127.0.0.1", ReadTimeout: 5, WriteTimeout: 5, LogLevel: "error"})
	if s.Addr() != nil {
		t.Error("Addr should be nil before Listen")
	}
	if err := s.Serve(); err == nil {
		t.Error("Serve should fail before Listen")
	}
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.ActiveConns() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ActiveConns() != 1 {
		t.Fatalf("Expected 1 active connection, got %d", s.ActiveConns())
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve should return nil after Stop, got %v", err)
	}
	if s.ActiveConns() != 0 {
		t.Errorf("Expected 0 active connections, got %d", s.ActiveConns())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("Connection should be closed by Stop")
	}
}
