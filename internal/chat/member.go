package chat

import (
	"errors"
	"sync"
	"time"
)

var errMemberGone = errors.New("member gone")

// errDeliverTimeout means the member's outbox stayed full for the whole deliver timeout.
var errDeliverTimeout = errors.New("deliver timeout")

// Member represents a registered participant in the chat room.
type Member struct {
	ID   uint64
	Name string

	outbox *Outbox
}

// Outbox returns the member's outbound line queue.
func (m *Member) Outbox() *Outbox {
	return m.outbox
}

// Outbox is the write queue in front of a single member's transport. The
// broadcast loop posts into it; exactly one relay goroutine drains it.
type Outbox struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newOutbox(size int) *Outbox {
	if size <= 0 {
		size = defaultOutboxSize
	}
	return &Outbox{
		lines: make(chan string, size),
		done:  make(chan struct{}),
	}
}

// Lines returns the channel of lines waiting to be written.
func (o *Outbox) Lines() <-chan string {
	return o.lines
}

// Done is closed once the member has left the room.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Close marks the outbox as finished. Lines still queued are discarded.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// post queues a line, waiting up to timeout for room in the buffer.
// A zero timeout waits until the member leaves.
func (o *Outbox) post(line string, timeout time.Duration) error {
	select {
	case <-o.done:
		return errMemberGone
	default:
	}

	select {
	case o.lines <- line:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o.lines <- line:
		return nil
	case <-o.done:
		return errMemberGone
	case <-expired:
		return errDeliverTimeout
	}
}
