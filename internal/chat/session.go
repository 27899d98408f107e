package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ledzpl/linechat/internal/logging"
)

const (
	namePrompt  = "Enter your username:"
	quitCommand = "quit"
)

var errSessionTerminated = errors.New("session terminated")

// LineConn is a client transport that exchanges whole lines.
type LineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

type sessionState int

const (
	stateConnecting sessionState = iota
	stateRegistering
	stateActive
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateRegistering:
		return "registering"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("sessionState(%d)", int(s))
	}
}

// HandleSession runs the chat protocol on conn until the client quits, the
// transport fails, the room closes or ctx is cancelled. conn is closed on
// return and the member, if one was registered, has left the room.
func HandleSession(ctx context.Context, room *Room, conn LineConn) {
	newSession(room, conn, logging.Ctx(ctx)).run(ctx)
}

type session struct {
	room *Room
	conn LineConn
	log  zerolog.Logger

	state  sessionState
	member *Member

	relay   sync.WaitGroup
	cleanup sync.Once
}

func newSession(room *Room, conn LineConn, logger zerolog.Logger) *session {
	return &session{
		room:  room,
		conn:  conn,
		log:   logger,
		state: stateConnecting,
	}
}

func (s *session) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer s.cleanupSession()

	s.handleExit(s.serve(ctx))
}

func (s *session) serve(ctx context.Context) error {
	if err := s.prompt(); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	if err := s.register(); err != nil {
		return fmt.Errorf("await username: %w", err)
	}
	return s.readLoop(ctx)
}

func (s *session) prompt() error {
	if err := s.conn.WriteLine(namePrompt); err != nil {
		return err
	}
	s.setState(stateRegistering)
	return nil
}

func (s *session) register() error {
	name, err := s.conn.ReadLine()
	if err != nil {
		return err
	}

	s.member = s.room.Join(strings.TrimSpace(name))
	s.log = s.log.With().
		Uint64(logging.FieldMemberID, s.member.ID).
		Str(logging.FieldUsername, s.member.Name).
		Logger()
	s.setState(stateActive)

	s.startOutboundRelay()
	return nil
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return err
		}
		if err := s.handleLine(ctx, line); err != nil {
			return err
		}
	}
}

func (s *session) handleLine(ctx context.Context, line string) error {
	text := strings.TrimSpace(line)
	switch text {
	case "":
		return nil
	case quitCommand:
		return errSessionTerminated
	}

	if err := s.room.Submit(ctx, Message{Sender: s.member.Name, Content: text}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// startOutboundRelay makes this goroutine the only writer to the transport
// once the member is registered.
func (s *session) startOutboundRelay() {
	outbox := s.member.Outbox()

	s.relay.Add(1)
	go func() {
		defer s.relay.Done()
		// Nobody drains the outbox after this returns; close the transport so the reader stops as well.
		defer s.conn.Close()

		for {
			select {
			case line := <-outbox.Lines():
				if err := s.conn.WriteLine(line); err != nil {
					s.log.Debug().Err(err).Msg("outbound write failed")
					return
				}
			case <-outbox.Done():
				return
			}
		}
	}()
}

func (s *session) cleanupSession() {
	s.cleanup.Do(func() {
		if s.member != nil {
			s.room.Leave(s.member.ID)
		}
		_ = s.conn.Close()
		s.relay.Wait()
		s.setState(stateClosed)
	})
}

func (s *session) setState(state sessionState) {
	s.log.Trace().Stringer("from", s.state).Stringer("to", state).Msg("session state")
	s.state = state
}

func (s *session) handleExit(err error) {
	switch {
	case err == nil, errors.Is(err, errSessionTerminated):
		s.log.Info().Msg("client quit")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		s.log.Info().Stringer("state", s.state).Msg("connection closed")
	case errors.Is(err, ErrRoomClosed), errors.Is(err, context.Canceled):
		s.log.Info().Err(err).Msg("session stopped")
	default:
		s.log.Warn().Err(err).Stringer("state", s.state).Msg("session ended with error")
	}
}
