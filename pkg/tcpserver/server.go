// Package tcpserver runs a TCP accept loop bound to a context.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handler serves one accepted connection. ctx is cancelled when the server
// shuts down; the handler owns conn and must close it.
type Handler func(ctx context.Context, conn net.Conn)

// Server wraps the TCP listener lifecycle.
type Server struct {
	Addr string

	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a Server for addr.
func New(addr string, logger zerolog.Logger) *Server {
	return &Server{
		Addr:   addr,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled or the
// listener fails. It waits for running handlers before returning.
func (s *Server) ListenAndServe(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	if handler == nil {
		return errors.New("tcpserver: handler required")
	}
	defer listener.Close()

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Msg("tcpserver: listener close error")
		}
	})
	defer stop()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("tcpserver: listening")

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("tcpserver: accept: %w", err)
			}
			s.logger.Warn().Err(err).Msg("tcpserver: accept error")
			continue
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			handler(ctx, conn)
		}()
	}
}

// ListenAddr blocks until the server is listening and returns the bound
// address, or nil if ctx ends first.
func (s *Server) ListenAddr(ctx context.Context) net.Addr {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}
