package chat

import (
	"context"
	"errors"
	"sync"
)

// ErrRoomClosed is returned when submitting to, or reading from, a room that has shut down.
var ErrRoomClosed = errors.New("room closed")

// Queue is a bounded FIFO of messages with many producers and one consumer.
type Queue struct {
	messages chan Message
	closed   chan struct{}
	once     sync.Once
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &Queue{
		messages: make(chan Message, capacity),
		closed:   make(chan struct{}),
	}
}

// Submit enqueues msg, blocking while the queue is full.
func (q *Queue) Submit(ctx context.Context, msg Message) error {
	select {
	case <-q.closed:
		return ErrRoomClosed
	default:
	}

	select {
	case q.messages <- msg:
		return nil
	case <-q.closed:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next blocks until a message is available. Once the queue is closed, the
// remaining buffered messages are still returned before ErrRoomClosed.
func (q *Queue) Next(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-q.closed:
		select {
		case msg := <-q.messages:
			return msg, nil
		default:
			return Message{}, ErrRoomClosed
		}
	}
}

// Close permanently stops the queue from accepting messages.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Len reports how many messages are waiting.
func (q *Queue) Len() int {
	return len(q.messages)
}

func (q *Queue) Cap() int {
	return cap(q.messages)
}
