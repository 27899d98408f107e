package sshserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode"

	"golang.org/x/crypto/ssh"
)

const (
	ctrlC      = 0x03
	ctrlD      = 0x04
	backspace  = '\b'
	deleteChar = 0x7f
)

// ErrShellNotRequested indicates the client closed the request stream without asking for a shell.
var ErrShellNotRequested = errors.New("sshserver: shell request not received before channel closed")

// errTerminated is returned by ReadLine after Ctrl+C or Ctrl+D; it matches io.EOF.
var errTerminated = fmt.Errorf("sshserver: terminated by client: %w", io.EOF)

// Terminal exchanges whole lines over an interactive SSH session channel. It
// echoes keystrokes, supports backspace, and keeps the line being typed below
// incoming output.
type Terminal struct {
	channel  ssh.Channel
	requests <-chan *ssh.Request

	reader *bufio.Reader
	buffer *lineBuffer
	ui     *terminalUI
	status func() string
	colors bool

	eof       bool
	closeOnce sync.Once
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithStatus shows the result of fn on a status line, refreshed on every redraw.
func WithStatus(fn func() string) TerminalOption {
	return func(t *Terminal) {
		t.status = fn
	}
}

// WithColoredNames colors the sender prefix of "name: text" lines.
func WithColoredNames() TerminalOption {
	return func(t *Terminal) {
		t.colors = true
	}
}

// WithMaxLineLength caps the number of characters accepted on one line.
func WithMaxLineLength(n int) TerminalOption {
	return func(t *Terminal) {
		t.buffer = newLineBuffer(n)
	}
}

func NewTerminal(channel ssh.Channel, requests <-chan *ssh.Request, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		channel:  channel,
		requests: requests,
		reader:   bufio.NewReader(channel),
		buffer:   newLineBuffer(defaultLineLimit),
		ui:       newTerminalUI(channel),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AwaitShell drains channel requests and blocks until the client requests a
// shell. Later requests are answered in the background.
func (t *Terminal) AwaitShell() error {
	for req := range t.requests {
		if !handleRequest(req) {
			continue
		}

		go func() {
			for req := range t.requests {
				handleRequest(req)
			}
		}()
		return t.ui.ClearScreen()
	}
	return ErrShellNotRequested
}

func handleRequest(req *ssh.Request) bool {
	switch req.Type {
	case "shell":
		_ = req.Reply(true, nil)
		return true
	case "pty-req", "env", "window-change", "signal":
		_ = req.Reply(true, nil)
	default:
		_ = req.Reply(false, nil)
	}
	return false
}

// ReadLine returns the next line typed by the client.
func (t *Terminal) ReadLine() (string, error) {
	if t.eof {
		return "", io.EOF
	}

	for {
		r, _, err := t.reader.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("sshserver: read: %w", err)
			}
			t.eof = true
			if line := t.buffer.Drain(); line != "" {
				return line, nil
			}
			return "", io.EOF
		}

		line, done, err := t.processRune(r)
		if err != nil {
			return "", err
		}
		if done {
			return line, nil
		}
	}
}

// processRune applies one keystroke, reporting done when a line is complete.
func (t *Terminal) processRune(r rune) (string, bool, error) {
	switch r {
	case '\r', '\n':
		t.skipLineFeed(r)
		line := t.buffer.Drain()
		return line, true, t.renderPrompt()
	case ctrlC, ctrlD:
		t.buffer.Reset()
		label := "^C"
		if r == ctrlD {
			label = "^D"
		}
		if err := t.ui.DisplayControlAck(label); err != nil {
			return "", false, err
		}
		t.eof = true
		return "", false, errTerminated
	case backspace, deleteChar:
		if t.buffer.TrimLast() {
			return "", false, t.renderPrompt()
		}
		return "", false, nil
	default:
		if unicode.IsPrint(r) && t.buffer.Append(r) {
			return "", false, t.renderPrompt()
		}
		return "", false, nil
	}
}

// skipLineFeed consumes the "\n" of a "\r\n" pair.
func (t *Terminal) skipLineFeed(r rune) {
	if r != '\r' || t.reader.Buffered() == 0 {
		return
	}
	if next, _, err := t.reader.ReadRune(); err == nil && next != '\n' {
		_ = t.reader.UnreadRune()
	}
}

// WriteLine prints line above the input line.
func (t *Terminal) WriteLine(line string) error {
	if t.colors {
		line = colorizeSender(line)
	}
	return t.ui.DisplayMessage(line, t.statusText(), t.buffer.Snapshot())
}

func (t *Terminal) renderPrompt() error {
	return t.ui.UpdatePrompt(t.statusText(), t.buffer.Snapshot())
}

func (t *Terminal) statusText() string {
	if t.status == nil {
		return ""
	}
	return t.status()
}

// Close closes the SSH channel.
func (t *Terminal) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.channel.Close()
	})
	return err
}
