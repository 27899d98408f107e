package wsserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn exchanges lines as WebSocket text frames, one line per frame. It pings
// the peer periodically and fails reads once pongs stop arriving.
type Conn struct {
	ws  *websocket.Conn
	cfg Config

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, cfg Config) *Conn {
	c := &Conn{
		ws:   ws,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	ws.SetReadLimit(cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	go c.pingLoop()
	return c
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadLine returns the next frame with trailing line terminators removed.
func (c *Conn) ReadLine() (string, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("wsserver: read: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// WriteLine sends line as a single text frame.
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("wsserver: set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("wsserver: write: %w", err)
	}
	return nil
}

// Close sends a close frame and tears down the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the peer's network address as a string.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
