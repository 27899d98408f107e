package chat

import (
	"context"
	"errors"

	"github.com/ledzpl/linechat/internal/logging"
)

// Run is the broadcast loop. It drains the queue and posts every message to
// each member's outbox, returning when ctx is cancelled or the room is closed.
// Only one Run may be active per room.
func (r *Room) Run(ctx context.Context) error {
	r.log.Info().Int("queue_capacity", r.queue.Cap()).Msg("broadcast loop started")
	defer r.log.Info().Msg("broadcast loop stopped")

	for {
		msg, err := r.queue.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrRoomClosed) {
				return nil
			}
			return err
		}
		r.fanout(msg)
	}
}

func (r *Room) fanout(msg Message) {
	line := msg.String()
	r.log.Debug().Str(logging.FieldUsername, msg.Sender).Msg("broadcasting message")

	r.members.ForEach(func(m *Member) {
		err := m.outbox.post(line, r.deliverTimeout)
		switch {
		case err == nil:
		case errors.Is(err, errMemberGone):
			// Left while the fan-out was running.
		default:
			r.log.Warn().Err(err).
				Uint64(logging.FieldMemberID, m.ID).
				Str(logging.FieldUsername, m.Name).
				Msg("evicting member")
			r.Leave(m.ID)
		}
	})
}
