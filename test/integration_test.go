package test

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
	"chat-core/repositories"
	"chat-core/runtime"
	"chat-core/runtime/workers"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type core struct {
	orchestrator *runtime.Orchestrator
	rooms        repositories.RoomRepository
}

// startCore wires a complete chat core process around the given broker.
func startCore(t *testing.T, b contract.IBroker) core {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	rooms := repositories.NewRoomRepository(db)
	participants := repositories.NewParticipantRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	presence := runtime.NewPresenceTracker(rooms, participants, log)
	supervisor := workers.NewSupervisor(log, 200*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(),
		rooms, presence, messages, b, 100, time.Second, 500, '*')

	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(func() {
		orchestrator.Stop()
		cancel()
		db.Close()
	})
	return core{orchestrator: orchestrator, rooms: rooms}
}

func next(t *testing.T, stream <-chan event.DomainEvent) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-stream:
		return evt
	case <-time.After(3 * time.Second):
		require.FailNow(t, "Timeout: event has never reached the stream")
		return nil
	}
}

func runScenario(t *testing.T, c core) {
	ctx := context.Background()
	req := require.New(t)

	room := domain.NewRoom("general", "team wide chatter")
	req.NoError(c.rooms.Create(room))

	// 1. Alice joins and follows the member feed
	alice, err := c.orchestrator.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "alice"})
	req.NoError(err)
	memberSnapshot, memberStream, err := c.orchestrator.SubscribeMembers(ctx, room.ID)
	req.NoError(err)
	req.Len(memberSnapshot, 1)

	// 2. Bob joins and the feed announces him
	bob, err := c.orchestrator.Join(ctx, domain.JoinCommand{RoomID: room.ID, Nickname: "bob"})
	req.NoError(err)
	enter, ok := next(t, memberStream).(event.PresenceChanged)
	req.True(ok)
	req.Equal(event.ActionEnter, enter.Action)
	req.Equal(bob.ID, enter.Participant.ID)

	// 3. Bob follows the messages, history is still empty
	history, messageStream, err := c.orchestrator.SubscribeMessages(ctx, room.ID)
	req.NoError(err)
	req.Empty(history)

	// 4. Alice sends a message, it reaches Bob live
	msg, err := c.orchestrator.Send(ctx, domain.SendCommand{
		RoomID: room.ID, SenderID: alice.ID,
		Content: "this message will self destruct in 5 seconds",
	})
	req.NoError(err)

	sent, ok := next(t, messageStream).(event.MessageSent)
	req.True(ok)
	req.Equal(msg.ID, sent.ID)
	req.Equal("alice", sent.Nickname)

	activity, ok := next(t, messageStream).(event.PresenceChanged)
	req.True(ok)
	req.Equal(event.ActionSend, activity.Action)
	req.Equal(alice.ID, activity.Participant.ID)

	// 5. A latecomer gets the message from the snapshot, not the stream
	lateHistory, lateStream, err := c.orchestrator.SubscribeMessages(ctx, room.ID)
	req.NoError(err)
	req.Len(lateHistory, 1)
	req.Equal(msg.ID, lateHistory[0].ID)
	select {
	case evt := <-lateStream:
		req.FailNowf("unexpected event", "%T", evt)
	case <-time.After(100 * time.Millisecond):
	}

	// 6. Bob leaves; the feed carries his last known state
	_, err = c.orchestrator.Leave(ctx, bob.ID)
	req.NoError(err)
	leave, ok := next(t, memberStream).(event.PresenceChanged)
	req.True(ok)
	req.Equal(event.ActionLeave, leave.Action)
	req.Equal("bob", leave.Participant.Nickname)

	// 7. Leaving twice has nothing left to destroy
	_, err = c.orchestrator.Leave(ctx, bob.ID)
	req.ErrorIs(err, cerrors.ErrParticipantNotFound)

	members, _, err := c.orchestrator.SubscribeMembers(ctx, room.ID)
	req.NoError(err)
	req.Len(members, 1)
	req.Equal(alice.ID, members[0].ID)
}

func Test_Scenario(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	b := broker.NewMemoryBroker(log, 100)
	c := startCore(t, b)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	runScenario(t, c)
}

// Test_Scenario_Over_Redis replays the same scenario across a real
// Redis instance. Set TEST_REDIS_ADDR to enable it.
func Test_Scenario_Over_Redis(t *testing.T) {
	req := require.New(t)
	cfg, err := LoadConfig()
	req.NoError(err)
	if cfg.RedisAddr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	b := broker.NewRedisBroker(client, logs.GetLoggerFromLevel(slog.LevelDebug))
	c := startCore(t, b)

	// PSubscribe handshake happened inside Start, publishing is safe.
	runScenario(t, c)
}
