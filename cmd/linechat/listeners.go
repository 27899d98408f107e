package main

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/ledzpl/linechat/internal/chat"
	"github.com/ledzpl/linechat/internal/config"
	"github.com/ledzpl/linechat/internal/logging"
	"github.com/ledzpl/linechat/pkg/lineconn"
	"github.com/ledzpl/linechat/pkg/sshserver"
	"github.com/ledzpl/linechat/pkg/tcpserver"
	"github.com/ledzpl/linechat/pkg/wsserver"
)

type listener struct {
	name  string
	serve func(ctx context.Context) error
}

// newListeners builds one listener per configured transport. Every transport
// ends up in chat.HandleSession.
func newListeners(cfg *config.Config, room *chat.Room, logger zerolog.Logger) ([]listener, error) {
	var listeners []listener

	if addr := cfg.Server.TCPAddr; addr != "" {
		srv := tcpserver.New(addr, logger)
		listeners = append(listeners, listener{
			name: "tcp",
			serve: func(ctx context.Context) error {
				return srv.ListenAndServe(ctx, func(ctx context.Context, conn net.Conn) {
					ctx = sessionContext(ctx, logger, "tcp", conn.RemoteAddr().String())
					chat.HandleSession(ctx, room, lineconn.New(conn,
						lineconn.WithMaxLineLength(cfg.Conn.MaxLineLength),
						lineconn.WithWriteTimeout(cfg.Conn.WriteTimeout),
					))
				})
			},
		})
	}

	if addr := cfg.Server.SSHAddr; addr != "" {
		signer, err := sshserver.LoadOrGenerateSigner(cfg.Server.HostKey)
		if err != nil {
			return nil, fmt.Errorf("prepare host key: %w", err)
		}
		srv := sshserver.New(addr, signer, logger)
		status := func() string { return fmt.Sprintf("Users online: %d", room.MemberCount()) }

		listeners = append(listeners, listener{
			name: "ssh",
			serve: func(ctx context.Context) error {
				return srv.ListenAndServe(ctx, func(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request) {
					ctx = sessionContext(ctx, logger, "ssh", conn.RemoteAddr().String())
					term := sshserver.NewTerminal(channel, requests,
						sshserver.WithMaxLineLength(cfg.Conn.MaxLineLength),
						sshserver.WithStatus(status),
						sshserver.WithColoredNames(),
					)
					if err := term.AwaitShell(); err != nil {
						l := logging.Ctx(ctx)
						l.Debug().Err(err).Msg("ssh session without shell")
						_ = term.Close()
						return
					}
					chat.HandleSession(ctx, room, term)
				})
			},
		})
	}

	if addr := cfg.Server.WSAddr; addr != "" {
		srv := wsserver.New(addr, cfg.Server.WSPath, wsserver.Config{
			PingInterval:   cfg.WebSocket.PingInterval,
			PongWait:       cfg.WebSocket.PongWait,
			WriteTimeout:   cfg.Conn.WriteTimeout,
			MaxMessageSize: int64(cfg.Conn.MaxLineLength),
		}, logger)

		listeners = append(listeners, listener{
			name: "websocket",
			serve: func(ctx context.Context) error {
				return srv.ListenAndServe(ctx, func(ctx context.Context, conn *wsserver.Conn) {
					ctx = sessionContext(ctx, logger, "websocket", conn.RemoteAddr())
					chat.HandleSession(ctx, room, conn)
				})
			},
		})
	}

	for _, l := range listeners {
		logger.Debug().Str(logging.FieldTransport, l.name).Msg("transport enabled")
	}
	return listeners, nil
}

// sessionContext tags the connection's logger with a fresh connection id.
func sessionContext(ctx context.Context, logger zerolog.Logger, transport, remoteAddr string) context.Context {
	l := logger.With().
		Str(logging.FieldConnID, uuid.NewString()).
		Str(logging.FieldTransport, transport).
		Str(logging.FieldRemoteAddr, remoteAddr).
		Logger()
	l.Info().Msg("connection accepted")
	return logging.WithLogger(ctx, l)
}
