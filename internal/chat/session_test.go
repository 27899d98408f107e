package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionAliceAndBob(t *testing.T) {
	room := startRoom(t)

	alice := newFakeConn()
	aliceDone := startSession(t, room, alice)
	alice.expectLine(t, namePrompt)
	alice.send(t, "alice")

	bob := newFakeConn()
	bobDone := startSession(t, room, bob)
	bob.expectLine(t, namePrompt)
	bob.send(t, "bob")

	require.Eventually(t, func() bool { return room.MemberCount() == 2 }, waitTimeout, 5*time.Millisecond)

	alice.send(t, "hello")
	alice.expectLine(t, "alice: hello")
	bob.expectLine(t, "alice: hello")

	bob.send(t, "quit")
	waitClosed(t, bobDone)
	require.Equal(t, 1, room.MemberCount())

	alice.send(t, "still here")
	alice.expectLine(t, "alice: still here")
	bob.expectNoLine(t)

	alice.hangUp()
	waitClosed(t, aliceDone)
	require.Zero(t, room.MemberCount())
}

func TestSessionIgnoresBlankLines(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	startSession(t, room, conn)
	conn.expectLine(t, namePrompt)
	conn.send(t, "  carol  ")
	require.Eventually(t, func() bool { return room.MemberCount() == 1 }, waitTimeout, 5*time.Millisecond)

	conn.send(t, "")
	conn.send(t, "   \t ")
	conn.send(t, "  spaced out  ")

	conn.expectLine(t, "carol: spaced out")
	conn.expectNoLine(t)
}

func TestSessionQuitIsTrimmed(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	done := startSession(t, room, conn)
	conn.expectLine(t, namePrompt)
	conn.send(t, "dave")
	conn.send(t, " quit ")

	waitClosed(t, done)
	require.Zero(t, room.MemberCount())
}

func TestSessionEmptyNameGetsFallback(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	startSession(t, room, conn)
	conn.expectLine(t, namePrompt)
	conn.send(t, "   ")
	conn.send(t, "hi")

	conn.expectLine(t, "user-001: hi")
}

func TestSessionClosedBeforeRegistration(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	done := startSession(t, room, conn)
	conn.expectLine(t, namePrompt)
	conn.endInput()

	waitClosed(t, done)
	require.Zero(t, room.MemberCount())
}

func TestSessionPromptFailureNeverRegisters(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	done := startSession(t, room, conn)

	waitClosed(t, done)
	require.Zero(t, room.MemberCount())
	require.Zero(t, room.Members().sequence.Load())
}

func TestSessionEndsWhenRoomCloses(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	done := startSession(t, room, conn)
	conn.expectLine(t, namePrompt)
	conn.send(t, "erin")
	require.Eventually(t, func() bool { return room.MemberCount() == 1 }, waitTimeout, 5*time.Millisecond)

	room.Close()
	conn.send(t, "anyone?")

	waitClosed(t, done)
	require.Zero(t, room.MemberCount())
}

func TestSessionEndsOnContextCancel(t *testing.T) {
	room := startRoom(t)

	ctx, cancel := context.WithCancel(context.Background())
	conn := newFakeConn()
	done := startSessionContext(t, ctx, room, conn)
	conn.expectLine(t, namePrompt)
	conn.send(t, "frank")
	require.Eventually(t, func() bool { return room.MemberCount() == 1 }, waitTimeout, 5*time.Millisecond)

	cancel()

	waitClosed(t, done)
	require.Zero(t, room.MemberCount())
}

func TestSessionEndsWhenEvicted(t *testing.T) {
	room := startRoom(t)

	conn := newFakeConn()
	done := startSession(t, room, conn)
	conn.expectLine(t, namePrompt)
	conn.send(t, "grace")

	var member *Member
	require.Eventually(t, func() bool {
		room.Members().ForEach(func(m *Member) { member = m })
		return member != nil
	}, waitTimeout, 5*time.Millisecond)

	room.Leave(member.ID)

	waitClosed(t, done)
}

func TestSessionStateString(t *testing.T) {
	require.Equal(t, "connecting", stateConnecting.String())
	require.Equal(t, "registering", stateRegistering.String())
	require.Equal(t, "active", stateActive.String())
	require.Equal(t, "closed", stateClosed.String())
	require.Equal(t, "sessionState(9)", sessionState(9).String())
}
