package pool

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func TestConnStreamRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	peerDone := make(chan error, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			peerDone <- err
			return
		}
		defer nc.Close()

		line, err := bufio.NewReader(nc).ReadString('\n')
		if err != nil {
			peerDone <- err
			return
		}
		_, err = io.WriteString(nc, "got "+line)
		peerDone <- err
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	p, err := New("127.0.0.1", port)
	if err != nil {
		t.Fatal(err)
	}

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() == "" {
		t.Error("Connection should have an ID")
	}
	if c.Addr() != p.Addr() {
		t.Errorf("Expected addr %s, got %s", p.Addr(), c.Addr())
	}
	if c.CreatedAt().IsZero() {
		t.Error("CreatedAt should be set")
	}

	if _, err := c.Write([]byte("ping\r\n")); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := c.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	line, err := c.Reader().ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "got ping\r\n" {
		t.Errorf("Expected echo of request, got %q", line)
	}
	if err := <-peerDone; err != nil {
		t.Fatal(err)
	}

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := c.netConn.Write([]byte("x")); err == nil {
		t.Error("Stream should be unusable after close")
	}
}

func TestConnectErrorMatching(t *testing.T) {
	refused := &ConnectError{Addr: "h:1", Err: errors.New("connection refused")}
	if !errors.Is(refused, ErrConnect) {
		t.Error("ConnectError should match ErrConnect")
	}
	if errors.Is(refused, ErrTimeout) {
		t.Error("Refused connect should not match ErrTimeout")
	}

	timedOut := &ConnectError{Addr: "h:1", Err: os.ErrDeadlineExceeded}
	if !errors.Is(timedOut, ErrTimeout) {
		t.Error("Deadline cause should match ErrTimeout")
	}
	if timedOut.Error() == "" {
		t.Error("Error string should not be empty")
	}
}
