// Package wsserver serves line-oriented sessions over WebSocket.
package wsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Config tunes WebSocket keepalive and limits.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the keepalive settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	return c
}

// ConnHandler serves one upgraded connection and must close it.
type ConnHandler func(ctx context.Context, conn *Conn)

// Server upgrades HTTP requests on Path to WebSocket line connections.
type Server struct {
	Addr string
	Path string

	cfg      Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	conns sync.WaitGroup
}

func New(addr, path string, cfg Config, logger zerolog.Logger) *Server {
	if path == "" {
		path = "/"
	}
	return &Server{
		Addr:   addr,
		Path:   path,
		cfg:    cfg.withDefaults(),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns an http.Handler that upgrades requests and runs handle for
// each connection. ctx is handed to every handler instead of the request
// context, which ends when the handler is hijacked.
func (s *Server) Handler(ctx context.Context, handle ConnHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.Path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("wsserver: upgrade failed")
			return
		}

		s.conns.Add(1)
		defer s.conns.Done()
		handle(ctx, newConn(ws, s.cfg))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then waits for open connections.
func (s *Server) ListenAndServe(ctx context.Context, handle ConnHandler) error {
	if handle == nil {
		return errors.New("wsserver: handler required")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen %q: %w", s.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(ctx, handle),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", listener.Addr().String()).Str("path", s.Path).Msg("wsserver: listening")
		errs <- srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("wsserver: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("wsserver: shutdown error")
	}
	// Hijacked connections are not tracked by Shutdown.
	s.conns.Wait()
	return ctx.Err()
}
