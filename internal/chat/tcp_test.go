package chat_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ledzpl/linechat/internal/chat"
	"github.com/ledzpl/linechat/internal/logging"
	"github.com/ledzpl/linechat/pkg/lineconn"
	"github.com/ledzpl/linechat/pkg/tcpserver"
)

type tcpClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr net.Addr) *tcpClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *tcpClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(c.conn, line+"\r\n")
	require.NoError(t, err)
}

func (c *tcpClient) expect(t *testing.T, want string) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, want+"\n", line)
}

func (c *tcpClient) expectClosed(t *testing.T) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := c.reader.ReadString('\n')
	require.ErrorIs(t, err, io.EOF)
}

func TestChatOverTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), zerolog.Nop()))

	room := chat.NewRoom(chat.WithQueueCapacity(4))
	srv := tcpserver.New("127.0.0.1:0", zerolog.Nop())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = room.Run(ctx)
	}()
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.ListenAndServe(ctx, func(ctx context.Context, conn net.Conn) {
			chat.HandleSession(ctx, room, lineconn.New(conn))
		})
	}()
	defer func() {
		cancel()
		<-served
		<-stopped
	}()

	addr := srv.ListenAddr(ctx)
	require.NotNil(t, addr)

	alice := dial(t, addr)
	alice.expect(t, "Enter your username:")
	alice.send(t, "alice")

	bob := dial(t, addr)
	bob.expect(t, "Enter your username:")
	bob.send(t, "bob")

	require.Eventually(t, func() bool { return room.MemberCount() == 2 }, time.Second, 5*time.Millisecond)

	alice.send(t, "hello")
	alice.expect(t, "alice: hello")
	bob.expect(t, "alice: hello")

	bob.send(t, "quit")
	bob.expectClosed(t)
	require.Eventually(t, func() bool { return room.MemberCount() == 1 }, time.Second, 5*time.Millisecond)

	alice.send(t, "")
	alice.send(t, "anyone?")
	alice.expect(t, "alice: anyone?")

	require.NoError(t, alice.conn.Close())
	require.Eventually(t, func() bool { return room.MemberCount() == 0 }, time.Second, 5*time.Millisecond)
}
