package chat

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ledzpl/linechat/internal/logging"
)

const waitTimeout = time.Second

// fakeConn is an in-memory LineConn. The test plays the client through send,
// expectLine and hangUp.
type fakeConn struct {
	in     chan string
	out    chan string
	closed chan struct{}
	once   sync.Once

	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan string, 16),
		out:    make(chan string, 1024),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case line, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-c.closed:
		return "", net.ErrClosed
	}
}

func (c *fakeConn) WriteLine(line string) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- line:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, line string) {
	t.Helper()
	select {
	case c.in <- line:
	case <-time.After(waitTimeout):
		t.Fatalf("timed out sending %q", line)
	}
}

// endInput simulates the client half-closing its side of the stream.
func (c *fakeConn) endInput() {
	close(c.in)
}

func (c *fakeConn) hangUp() {
	_ = c.Close()
}

func (c *fakeConn) expectLine(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.out:
		require.Equal(t, want, got)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (c *fakeConn) expectNoLine(t *testing.T) {
	t.Helper()
	select {
	case got := <-c.out:
		t.Fatalf("unexpected line %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// startRoom runs the broadcast loop until the test finishes.
func startRoom(t *testing.T, opts ...Option) *Room {
	t.Helper()

	room := NewRoom(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = room.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return room
}

// startSession runs HandleSession in the background; the returned channel is
// closed when the session has fully ended.
func startSession(t *testing.T, room *Room, conn *fakeConn) <-chan struct{} {
	t.Helper()
	return startSessionContext(t, context.Background(), room, conn)
}

func startSessionContext(t *testing.T, ctx context.Context, room *Room, conn *fakeConn) <-chan struct{} {
	t.Helper()

	ctx = logging.WithLogger(ctx, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		HandleSession(ctx, room, conn)
	}()
	t.Cleanup(func() {
		conn.hangUp()
		<-done
	})
	return done
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for session to end")
	}
}

func receive(t *testing.T, outbox *Outbox) string {
	t.Helper()
	select {
	case line := <-outbox.Lines():
		return line
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for broadcast")
		return ""
	}
}
