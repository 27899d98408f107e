package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledzpl/linechat/internal/logging"
)

const (
	defaultQueueCapacity  = 128
	defaultOutboxSize     = 64
	defaultDeliverTimeout = 5 * time.Second
)

// Room owns the member registry and the message queue shared by every session.
type Room struct {
	members *Registry
	queue   *Queue

	outboxSize     int
	deliverTimeout time.Duration
	log            zerolog.Logger
}

// Option configures a Room.
type Option func(*roomOptions)

type roomOptions struct {
	queueCapacity  int
	outboxSize     int
	deliverTimeout time.Duration
	logger         zerolog.Logger
}

// WithQueueCapacity bounds the number of messages waiting for broadcast.
func WithQueueCapacity(n int) Option {
	return func(o *roomOptions) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithOutboxSize sets how many lines may wait for a single member's transport.
func WithOutboxSize(n int) Option {
	return func(o *roomOptions) {
		if n > 0 {
			o.outboxSize = n
		}
	}
}

// WithDeliverTimeout sets how long the broadcast loop waits on a full outbox
// before evicting that member. Zero disables eviction.
func WithDeliverTimeout(d time.Duration) Option {
	return func(o *roomOptions) {
		if d >= 0 {
			o.deliverTimeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *roomOptions) {
		o.logger = logger
	}
}

// NewRoom constructs an empty chat room.
func NewRoom(opts ...Option) *Room {
	o := roomOptions{
		queueCapacity:  defaultQueueCapacity,
		outboxSize:     defaultOutboxSize,
		deliverTimeout: defaultDeliverTimeout,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Room{
		members:        NewRegistry(),
		queue:          NewQueue(o.queueCapacity),
		outboxSize:     o.outboxSize,
		deliverTimeout: o.deliverTimeout,
		log:            o.logger.With().Str(logging.FieldComponent, "room").Logger(),
	}
}

// Join registers a member under name. The caller must call Leave when the
// session ends.
func (r *Room) Join(name string) *Member {
	m := r.members.add(name, newOutbox(r.outboxSize))
	r.log.Debug().Uint64(logging.FieldMemberID, m.ID).Str(logging.FieldUsername, m.Name).Msg("member joined")
	return m
}

// Leave removes the member and closes its outbox. It is idempotent.
func (r *Room) Leave(id uint64) {
	m, ok := r.members.Remove(id)
	if !ok {
		return
	}
	m.outbox.Close()
	r.log.Debug().Uint64(logging.FieldMemberID, id).Str(logging.FieldUsername, m.Name).Msg("member left")
}

// Submit queues a message for broadcast, blocking while the queue is full.
func (r *Room) Submit(ctx context.Context, msg Message) error {
	return r.queue.Submit(ctx, msg)
}

// Close stops accepting messages. Run returns once queued messages are delivered.
func (r *Room) Close() {
	r.queue.Close()
}

// MemberCount returns the number of registered members.
func (r *Room) MemberCount() int {
	return r.members.Len()
}

// Members returns the registry backing the room.
func (r *Room) Members() *Registry {
	return r.members
}
