package sshserver

import (
	"io"
	"sync"
)

const (
	seqSaveCursor    = "\0337\033[s"
	seqRestoreCursor = "\033[u\0338"
	seqCursorHome    = "\033[H"
	seqClearLine     = "\033[2K"
	seqClearToEOL    = "\033[K"
	seqInsertLine    = "\033[1L"
	seqClearScreen   = "\033[2J"

	inputPrompt = "> "
)

// terminalUI draws chat output above the input line and an optional status
// line at the top of the screen.
type terminalUI struct {
	mu sync.Mutex
	w  io.Writer

	statusOnce sync.Once
	statusErr  error
}

func newTerminalUI(w io.Writer) *terminalUI {
	return &terminalUI{w: w}
}

func (ui *terminalUI) write(s string) error {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	_, err := io.WriteString(ui.w, s)
	return err
}

func (ui *terminalUI) ClearScreen() error {
	return ui.write(seqClearScreen + seqCursorHome)
}

func (ui *terminalUI) DisplayControlAck(label string) error {
	return ui.write("\r" + seqClearToEOL + label + "\r\n")
}

// DisplayMessage prints msg on its own line and redraws the input line below it.
func (ui *terminalUI) DisplayMessage(msg, status, input string) error {
	if err := ui.write("\r" + seqClearToEOL + msg + "\r\n"); err != nil {
		return err
	}
	return ui.UpdatePrompt(status, input)
}

// UpdatePrompt redraws the input line, and the status line when status is set.
func (ui *terminalUI) UpdatePrompt(status, input string) error {
	if status != "" {
		if err := ui.ensureStatusLine(); err != nil {
			return err
		}
		if err := ui.write(seqSaveCursor + seqCursorHome + seqClearLine + status + seqRestoreCursor); err != nil {
			return err
		}
	}
	return ui.write("\r" + inputPrompt + input + seqClearToEOL)
}

func (ui *terminalUI) ensureStatusLine() error {
	ui.statusOnce.Do(func() {
		ui.statusErr = ui.write(seqSaveCursor + seqCursorHome + seqInsertLine + seqRestoreCursor)
	})
	return ui.statusErr
}
