// Package sshserver serves interactive SSH sessions as line-oriented connections.
package sshserver

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/ledzpl/linechat/pkg/tcpserver"
)

// SessionHandler handles an accepted SSH "session" channel. ctx is cancelled
// when the server shuts down.
type SessionHandler func(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request)

// Server wraps the SSH listener lifecycle.
type Server struct {
	Config *ssh.ServerConfig

	tcp    *tcpserver.Server
	logger zerolog.Logger
}

// New creates a Server with the provided host signer. Clients are not authenticated.
func New(addr string, signer ssh.Signer, logger zerolog.Logger) *Server {
	cfg := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	cfg.AddHostKey(signer)

	return &Server{
		Config: cfg,
		tcp:    tcpserver.New(addr, logger),
		logger: logger,
	}
}

// ListenAndServe starts the SSH server until the context is cancelled or an error occurs.
func (s *Server) ListenAndServe(ctx context.Context, handler SessionHandler) error {
	if handler == nil {
		return errors.New("sshserver: session handler required")
	}
	return s.tcp.ListenAndServe(ctx, func(ctx context.Context, conn net.Conn) {
		s.handleConn(ctx, conn, handler)
	})
}

// ListenAddr blocks until the server is listening and returns its address.
func (s *Server) ListenAddr(ctx context.Context) net.Addr {
	return s.tcp.ListenAddr(ctx)
}

func (s *Server) handleConn(ctx context.Context, tcpConn net.Conn, handler SessionHandler) {
	defer tcpConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.Config)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote_addr", tcpConn.RemoteAddr().String()).Msg("sshserver: handshake failed")
		return
	}
	defer sshConn.Close()

	s.logger.Debug().
		Str("remote_addr", sshConn.RemoteAddr().String()).
		Str("client_version", string(sshConn.ClientVersion())).
		Msg("sshserver: new connection")

	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	defer sessions.Wait()

	for {
		select {
		case <-ctx.Done():
			// Closing the connection ends every open channel.
			_ = sshConn.Close()
			return
		case newChannel, ok := <-chans:
			if !ok {
				return
			}
			if newChannel.ChannelType() != "session" {
				_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				s.logger.Warn().Err(err).Msg("sshserver: channel accept failed")
				continue
			}

			sessions.Add(1)
			go func() {
				defer sessions.Done()
				handler(ctx, sshConn, channel, requests)
			}()
		}
	}
}
