package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-core/broker"
	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	cerrors "chat-core/errors"
	"chat-core/mocks"
	"chat-core/repositories"
	"chat-core/runtime/workers"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testBufferSize       = 16
	testSinkTimeout      = time.Second
	testMaxContentLength = 500
)

// newTestOrchestrator wires a full single-process core around the given
// broker and returns it together with the room directory for seeding.
func newTestOrchestrator(t *testing.T, b contract.IBroker) (*Orchestrator, repositories.RoomRepository) {
	t.Helper()
	log := slog.Default()
	db := openTestDB(t)

	rooms := repositories.NewRoomRepository(db)
	participants := repositories.NewParticipantRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	presence := NewPresenceTracker(rooms, participants, log)

	o := NewOrchestrator(log, workers.NewSupervisor(log, 50*time.Millisecond),
		NewRegistry(), rooms, presence, messages, b,
		testBufferSize, testSinkTimeout, testMaxContentLength, '*')
	return o, rooms
}

// startTestOrchestrator additionally launches the relay and waits for
// its broker subscription, so published events cannot race the wiring.
func startTestOrchestrator(t *testing.T, b *broker.MemoryBroker) (*Orchestrator, repositories.RoomRepository) {
	t.Helper()
	o, rooms := newTestOrchestrator(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, o.Start(ctx))
	t.Cleanup(o.Stop)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)
	return o, rooms
}

func seedRoom(t *testing.T, rooms repositories.RoomRepository) domain.Room {
	t.Helper()
	room := domain.NewRoom("general", "")
	require.NoError(t, rooms.Create(room))
	return room
}

func waitEvent(t *testing.T, stream <-chan event.DomainEvent) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-stream:
		return evt
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no event arrived on the stream")
		return nil
	}
}

func Test_Join_Announces_Enter_On_Member_Feed(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	// Given a member-feed subscription
	members, stream, err := o.SubscribeMembers(ctx, room.ID)
	req.NoError(err)
	req.Empty(members)

	// When someone joins
	alice, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	// Then an ENTER with the participant snapshot shows up
	evt := waitEvent(t, stream)
	presence, ok := evt.(event.PresenceChanged)
	req.True(ok)
	req.Equal(event.ActionEnter, presence.Action)
	req.Equal(alice.ID, presence.Participant.ID)
	req.Equal("alice", presence.Participant.Nickname)
}

func Test_Join_Rejects_Blank_Nickname(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	o, rooms := newTestOrchestrator(t, mocks.NewMockIBroker(ctrl))
	room := seedRoom(t, rooms)

	_, err := o.Join(context.Background(), domain.JoinCommand{RoomID: room.ID, Nickname: ""})
	req.Error(err)
}

func Test_Join_Unknown_Room_Publishes_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	b := mocks.NewMockIBroker(ctrl)
	b.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	o, _ := newTestOrchestrator(t, b)

	_, err := o.Join(context.Background(), domain.JoinCommand{RoomID: uuid.New(), Nickname: "alice"})
	req.ErrorIs(err, cerrors.ErrRoomNotFound)
}

func Test_Send_Appends_Then_Streams(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	alice, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	history, stream, err := o.SubscribeMessages(ctx, room.ID)
	req.NoError(err)
	req.Empty(history)

	// When a message is sent
	msg, err := o.Send(ctx, domain.SendCommand{RoomID: room.ID, SenderID: alice.ID, Content: "hello"})
	req.NoError(err)
	req.Equal("hello", msg.Content)
	req.Equal("alice", msg.Nickname)

	// Then the stream carries the message followed by the SEND activity
	sent, ok := waitEvent(t, stream).(event.MessageSent)
	req.True(ok)
	req.Equal(msg.ID, sent.ID)
	req.Equal("hello", sent.Content)

	activity, ok := waitEvent(t, stream).(event.PresenceChanged)
	req.True(ok)
	req.Equal(event.ActionSend, activity.Action)
	req.Equal(alice.ID, activity.Participant.ID)

	// And a later subscription sees it in the snapshot instead
	snapshot, _, err := o.SubscribeMessages(ctx, room.ID)
	req.NoError(err)
	req.Len(snapshot, 1)
	req.Equal(msg, snapshot[0])
}

func Test_Send_To_Unknown_Room_Publishes_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	b := mocks.NewMockIBroker(ctrl)
	b.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	o, _ := newTestOrchestrator(t, b)

	_, err := o.Send(context.Background(), domain.SendCommand{
		RoomID: uuid.New(), SenderID: uuid.New(), Content: "hello",
	})
	req.ErrorIs(err, cerrors.ErrRoomNotFound)
}

func Test_Send_From_Unknown_Participant(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	b := mocks.NewMockIBroker(ctrl)
	b.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	o, rooms := newTestOrchestrator(t, b)
	room := seedRoom(t, rooms)

	_, err := o.Send(context.Background(), domain.SendCommand{
		RoomID: room.ID, SenderID: uuid.New(), Content: "hello",
	})
	req.ErrorIs(err, cerrors.ErrParticipantNotFound)
}

func Test_Send_Survives_Broker_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	b := mocks.NewMockIBroker(ctrl)
	b.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(cerrors.ErrBrokerUnavailable).Times(3)
	o, rooms := newTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	// Join publishes once, Send twice; all three fail.
	alice, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	msg, err := o.Send(ctx, domain.SendCommand{RoomID: room.ID, SenderID: alice.ID, Content: "hello"})
	req.NoError(err)

	// The durable log kept the message even though fan-out failed.
	history, _, err := o.SubscribeMessages(ctx, room.ID)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(msg.ID, history[0].ID)
}

func Test_Send_Rejects_Oversized_Content(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	o, rooms := newTestOrchestrator(t, mocks.NewMockIBroker(ctrl))
	room := seedRoom(t, rooms)

	content := make([]rune, testMaxContentLength+1)
	for i := range content {
		content[i] = 'a'
	}
	_, err := o.Send(context.Background(), domain.SendCommand{
		RoomID: room.ID, SenderID: uuid.New(), Content: string(content),
	})
	req.ErrorContains(err, "exceeds")
}

func Test_Send_Censors_Forbidden_Words(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	alice, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	msg, err := o.Send(ctx, domain.SendCommand{
		RoomID: room.ID, SenderID: alice.ID, Content: "you are an idiot",
	})
	req.NoError(err)
	req.Equal("you are an *****", msg.Content)
}

func Test_Leave_Streams_Last_Snapshot(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	alice, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	_, stream, err := o.SubscribeMembers(ctx, room.ID)
	req.NoError(err)

	evt, err := o.Leave(ctx, alice.ID)
	req.NoError(err)
	req.Equal(event.ActionLeave, evt.Action)

	got, ok := waitEvent(t, stream).(event.PresenceChanged)
	req.True(ok)
	req.Equal(event.ActionLeave, got.Action)
	req.Equal("alice", got.Participant.Nickname)
	req.Equal(alice.ID, got.Participant.ID)

	// The session is gone, a second leave has nothing to destroy.
	_, err = o.Leave(ctx, alice.ID)
	req.ErrorIs(err, cerrors.ErrParticipantNotFound)
}

func Test_Subscribe_Unknown_Room(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	o, _ := newTestOrchestrator(t, mocks.NewMockIBroker(ctrl))
	ctx := context.Background()

	_, _, err := o.SubscribeMessages(ctx, uuid.New())
	req.ErrorIs(err, cerrors.ErrRoomNotFound)

	_, _, err = o.SubscribeMembers(ctx, uuid.New())
	req.ErrorIs(err, cerrors.ErrRoomNotFound)
}

// A frame published by a finished Send can still sit between the
// broker and the relay while a new subscriber attaches. The handshake
// must hand such a message out once: in the snapshot, not again on
// the stream.
func Test_Subscribe_Right_After_Send_Sees_Message_Once(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	alice, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	for i := 0; i < 60; i++ {
		// Given a message sent immediately before subscribing
		sent, err := o.Send(ctx, domain.SendCommand{RoomID: room.ID, SenderID: alice.ID, Content: "first"})
		req.NoError(err)

		subCtx, cancel := context.WithCancel(ctx)
		history, stream, err := o.SubscribeMessages(subCtx, room.ID)
		req.NoError(err)
		req.Equal(sent.ID, history[len(history)-1].ID)

		// When a marker message is sent after the handshake
		marker, err := o.Send(ctx, domain.SendCommand{RoomID: room.ID, SenderID: alice.ID, Content: "second"})
		req.NoError(err)

		// Then the stream reaches the marker without replaying anything
		// from the snapshot: frames are FIFO per subscription, so any
		// in-flight duplicate would have shown up first.
		for {
			msg, ok := waitEvent(t, stream).(event.MessageSent)
			if !ok {
				continue
			}
			if msg.ID == marker.ID {
				break
			}
			req.Failf("duplicate delivery", "message %s was in the snapshot and on the stream", msg.ID)
		}
		cancel()
	}
}

// Same boundary on the member feed: an ENTER still in flight for a
// participant already listed in the snapshot must not be streamed.
func Test_Subscribe_Members_Right_After_Join_Sees_Member_Once(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		joined, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "early"})
		req.NoError(err)

		subCtx, cancel := context.WithCancel(ctx)
		members, stream, err := o.SubscribeMembers(subCtx, room.ID)
		req.NoError(err)
		ids := lo.Map(members, func(p domain.Participant, _ int) uuid.UUID { return p.ID })
		req.Contains(ids, joined.ID)

		marker, err := o.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "late"})
		req.NoError(err)

		for {
			presence, ok := waitEvent(t, stream).(event.PresenceChanged)
			if !ok || presence.Action != event.ActionEnter {
				continue
			}
			if presence.Participant.ID == marker.ID {
				break
			}
			req.Failf("duplicate delivery", "participant %s was in the snapshot and on the stream", presence.Participant.ID)
		}
		cancel()
	}
}

func Test_Canceled_Subscription_Detaches_Without_Leaving(t *testing.T) {
	req := require.New(t)
	b := broker.NewMemoryBroker(slog.Default(), testBufferSize)
	defer b.Close()
	o, rooms := startTestOrchestrator(t, b)
	room := seedRoom(t, rooms)

	alice, err := o.Join(context.Background(), domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)

	subCtx, cancel := context.WithCancel(context.Background())
	_, _, err = o.SubscribeMembers(subCtx, room.ID)
	req.NoError(err)
	cancel()

	// Dropping the stream is not a leave; membership stays intact.
	members, _, err := o.SubscribeMembers(context.Background(), room.ID)
	req.NoError(err)
	req.Len(members, 1)
	req.Equal(alice.ID, members[0].ID)
}
