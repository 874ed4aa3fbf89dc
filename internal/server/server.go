// Package server implements a small line-oriented TCP echo server.
//
// It is the endpoint the pool is exercised against in tests and in the demo
// commands. Each request is one CRLF-terminated line; the server answers
// with the same line followed by "END\r\n". The line "quit" closes the
// connection from the server side.
//
// Example usage:
//
//	srv := server.New(cfg)
//	go func() {
//		if err := srv.Start(); err != nil {
//			log.Fatal(err)
//		}
//	}()
//	defer srv.Stop()
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cachemir/mcpool/pkg/config"
)

// Terminator ends every response.
const Terminator = "END\r\n"

// Server is a line echo server.
type Server struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

// New creates a Server for cfg. It is not listening until Listen or Start.
func New(cfg *config.ServerConfig) *Server {
	return &Server{
		addr:         cfg.Address(),
		readTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		writeTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		log:          config.NewLogger(cfg.LogLevel).With("component", "server"),
		conns:        make(map[net.Conn]struct{}),
	}
}

// Listen binds the TCP listener.
func (s *Server) Listen() error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Stop is called, handling each in its own
// goroutine. It returns nil after a clean Stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("failed to accept connection", "err", err)
			continue
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(conn)
	}
}

// Start is Listen followed by Serve.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to return.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// ActiveConns returns the number of open client connections.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug("error closing connection", "err", err)
		}
	}()

	r := bufio.NewReader(conn)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return
		}
		line, err := r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("read failed", "remote", conn.RemoteAddr().String(), "err", err)
			}
			return
		}

		if strings.TrimSpace(line) == "quit" {
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return
		}
		if _, err := io.WriteString(conn, line+Terminator); err != nil {
			s.log.Debug("write failed", "err", err)
			return
		}
	}
}
