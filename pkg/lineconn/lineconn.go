// Package lineconn frames a byte stream as newline-terminated text lines.
package lineconn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const DefaultMaxLineLength = 4096

// ErrLineTooLong is returned by ReadLine when a line exceeds the configured limit.
var ErrLineTooLong = errors.New("lineconn: line too long")

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// Conn reads and writes "\n"-terminated lines. A trailing "\r" on input is
// dropped. Reads and writes may run concurrently with each other.
type Conn struct {
	rwc     io.ReadWriteCloser
	scanner *bufio.Scanner

	writeTimeout time.Duration
	writeMu      sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Conn.
type Option func(*Conn)

// WithMaxLineLength limits the size of a single inbound line in bytes.
func WithMaxLineLength(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.scanner.Buffer(make([]byte, 0, min(n, 4096)), n)
		}
	}
}

// WithWriteTimeout sets a per-line write deadline when the underlying stream supports one.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.writeTimeout = d
	}
}

// New wraps rwc. The Conn takes ownership of rwc and closes it on Close.
func New(rwc io.ReadWriteCloser, opts ...Option) *Conn {
	c := &Conn{
		rwc:     rwc,
		scanner: bufio.NewScanner(rwc),
	}
	c.scanner.Buffer(make([]byte, 0, 4096), DefaultMaxLineLength)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadLine returns the next line without its terminator. io.EOF is returned
// once the stream ends.
func (c *Conn) ReadLine() (string, error) {
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	err := c.scanner.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", ErrLineTooLong
	default:
		return "", fmt.Errorf("lineconn: read: %w", err)
	}
}

// WriteLine writes line followed by "\n".
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if dw, ok := c.rwc.(deadlineWriter); ok && c.writeTimeout > 0 {
		if err := dw.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("lineconn: set write deadline: %w", err)
		}
	}

	if _, err := io.WriteString(c.rwc, line+"\n"); err != nil {
		return fmt.Errorf("lineconn: write: %w", err)
	}
	return nil
}

// Close closes the underlying stream. Further calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}
