package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/moderation"
	"chat-core/runtime/workers"
	"chat-core/sink"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

//go:embed censored/*
var censoredFolder embed.FS

// Orchestrator ties presence, the message log and the fan-out
// together. Writes flow one way: durable append first, best-effort
// publish second. It is safe for concurrent use.
type Orchestrator struct {
	mu               sync.Mutex
	log              *slog.Logger
	rooms            contract.IRoomDirectory
	presence         *PresenceTracker
	messages         contract.IMessageRepository
	broker           contract.IBroker
	registry         contract.IRegistry
	supervisor       contract.ISupervisor
	moderator        *moderation.Moderator
	bufferSize       int
	sinkTimeout      time.Duration
	maxContentLength int
	charReplacement  rune
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, rooms contract.IRoomDirectory,
	presence *PresenceTracker, messages contract.IMessageRepository,
	broker contract.IBroker, bufferSize int, sinkTimeout time.Duration,
	maxContentLength int, charReplacement rune) *Orchestrator {
	return &Orchestrator{
		log:              log,
		rooms:            rooms,
		presence:         presence,
		messages:         messages,
		broker:           broker,
		registry:         registry,
		supervisor:       supervisor,
		bufferSize:       bufferSize,
		sinkTimeout:      sinkTimeout,
		maxContentLength: maxContentLength,
		charReplacement:  charReplacement,
	}
}

// Start prepares the moderation automaton and launches the supervised
// broker relay. Preparation happens before the lock is taken so the
// I/O and automaton build never sit inside the critical section.
func (o *Orchestrator) Start(ctx context.Context) error {
	moderator, err := o.prepareModeration("censored", o.charReplacement)
	if err != nil {
		return err
	}

	relay := workers.NewRelayWorker(o.log, o.broker, o.registry, o.sinkTimeout)

	o.mu.Lock()
	o.moderator = moderator
	o.supervisor.Add(relay)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// prepareModeration loads censored words and builds the Aho-Corasick automaton.
func (o *Orchestrator) prepareModeration(path string, charReplacement rune) (*moderation.Moderator, error) {
	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll(path)
	if err != nil {
		return nil, err
	}

	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, charReplacement)
	if err != nil {
		return nil, err
	}
	return &moderator, nil
}

// Join creates a participant session and announces it on the room's
// member feed.
func (o *Orchestrator) Join(ctx context.Context, cmd domain.JoinCommand) (domain.Participant, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Participant{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.presence.Join(cmd.RoomID, cmd.Nickname)
	if err != nil {
		return domain.Participant{}, err
	}
	o.publish(ctx, event.NewPresenceChanged(p, event.ActionEnter))
	return p, nil
}

// Enter refreshes the participant's activity and announces the ENTER
// on the member feed with the participant's current info.
func (o *Orchestrator) Enter(ctx context.Context, participantID uuid.UUID) (event.PresenceChanged, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.presence.RefreshActivity(participantID)
	if err != nil {
		return event.PresenceChanged{}, err
	}
	evt := event.NewPresenceChanged(p, event.ActionEnter)
	o.publish(ctx, evt)
	return evt, nil
}

// Send appends the message to the durable log, then publishes it.
// The sender's activity is refreshed before the write; a persistence
// failure aborts the operation, a broker failure never does. One send
// produces exactly one durable message plus a SEND activity
// notification next to it, mirroring the member-feed action shape.
func (o *Orchestrator) Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Message{}, err
	}
	if o.maxContentLength > 0 && len([]rune(cmd.Content)) > o.maxContentLength {
		return domain.Message{}, fmt.Errorf("content exceeds %d characters", o.maxContentLength)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.rooms.Ref(cmd.RoomID); err != nil {
		return domain.Message{}, err
	}
	sender, err := o.presence.RefreshActivity(cmd.SenderID)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:       uuid.New(),
		RoomID:   cmd.RoomID,
		SenderID: sender.ID,
		Nickname: sender.Nickname,
		Content:  o.censor(cmd.SenderID, cmd.Content),
		SentAt:   time.Now().UTC(),
	}
	if err := o.messages.Append(msg); err != nil {
		return domain.Message{}, fmt.Errorf("message log append failed: %w", err)
	}

	o.publish(ctx, event.NewMessageSent(msg))
	o.publish(ctx, event.PresenceChanged{
		RoomID:      cmd.RoomID,
		Participant: sender,
		Action:      event.ActionSend,
		At:          msg.SentAt,
	})
	return msg, nil
}

// Leave refreshes, destroys the session, then announces the LEAVE
// with the pre-destruction snapshot.
func (o *Orchestrator) Leave(ctx context.Context, participantID uuid.UUID) (event.PresenceChanged, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.presence.Leave(participantID)
	if err != nil {
		return event.PresenceChanged{}, err
	}
	evt := event.NewPresenceChanged(p, event.ActionLeave)
	o.publish(ctx, evt)
	return evt, nil
}

// SubscribeMessages registers a sink on the room's message topic and
// returns the full history snapshot plus the live stream. Registration
// and snapshot read share the lock with Send; on top of that the sink
// drops any MessageSent whose ID is already in the snapshot, because a
// frame published by an earlier Send can still be in flight between
// the broker and the relay when the sink attaches. Appends always land
// before their publish, so an in-flight message is by definition in
// the history just read: snapshot or stream, never both.
// The stream stops when ctx is canceled; that has no effect on
// presence, leaving stays an explicit client action.
func (o *Orchestrator) SubscribeMessages(ctx context.Context, roomID uuid.UUID) ([]domain.Message, <-chan event.DomainEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.rooms.Ref(roomID); err != nil {
		return nil, nil, err
	}

	history, err := o.messages.History(roomID)
	if err != nil {
		return nil, nil, err
	}
	delivered := lo.SliceToMap(history, func(m domain.Message) (uuid.UUID, struct{}) {
		return m.ID, struct{}{}
	})
	stream := o.attach(ctx, event.MessageTopic(roomID), func(e event.DomainEvent) bool {
		sent, ok := e.(event.MessageSent)
		if !ok {
			return true
		}
		_, dup := delivered[sent.ID]
		return !dup
	})
	return history, stream, nil
}

// SubscribeMembers mirrors SubscribeMessages for the member feed: the
// snapshot is the current membership, the stream carries ENTER and
// LEAVE events. An in-flight ENTER for a participant already in the
// snapshot is suppressed; a LEAVE never is, the leave removed the
// record before publishing so it cannot be in the snapshot.
func (o *Orchestrator) SubscribeMembers(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, <-chan event.DomainEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.rooms.Ref(roomID); err != nil {
		return nil, nil, err
	}

	members, err := o.presence.ListActive(roomID)
	if err != nil {
		return nil, nil, err
	}
	present := lo.SliceToMap(members, func(p domain.Participant) (uuid.UUID, struct{}) {
		return p.ID, struct{}{}
	})
	stream := o.attach(ctx, event.MemberTopic(roomID), func(e event.DomainEvent) bool {
		presence, ok := e.(event.PresenceChanged)
		if !ok || presence.Action != event.ActionEnter {
			return true
		}
		_, dup := present[presence.Participant.ID]
		return !dup
	})
	return members, stream, nil
}

// attach wires a fresh sink into the registry and schedules its
// removal when the subscriber's context ends. The keep predicate runs
// on the relay goroutine; it must only read state frozen at attach
// time.
func (o *Orchestrator) attach(ctx context.Context, topic event.Topic,
	keep func(e event.DomainEvent) bool) <-chan event.DomainEvent {
	subscriberID := uuid.NewString()
	s := sink.NewChannelSink(o.log, o.bufferSize)
	o.registry.Subscribe(subscriberID, topic, sink.NewFilterSink(s, keep))

	go func() {
		<-ctx.Done()
		o.registry.Unsubscribe(subscriberID, topic)
	}()
	return s.Events
}

// censor masks forbidden words. Detection is logged with the guessed
// language so wordlist gaps per language show up in the logs.
func (o *Orchestrator) censor(senderID uuid.UUID, content string) string {
	if o.moderator == nil {
		return content
	}
	masked, found := o.moderator.Censor(content)
	if len(found) > 0 {
		info := whatlanggo.Detect(content)
		o.log.Warn("Censored message content",
			"sender_id", senderID,
			"lang", info.Lang.Iso6391(),
			"words", len(found))
	}
	return masked
}

// publish encodes and hands the event to the broker. Best-effort by
// contract: the durable write already happened, so a broker failure
// is logged and the event dropped. Subscribers recover message
// content through history on their next handshake.
func (o *Orchestrator) publish(ctx context.Context, evt event.DomainEvent) {
	payload, err := event.Encode(evt)
	if err != nil {
		o.log.Error("Event encoding failed, event dropped", "error", err)
		return
	}
	if err := o.broker.Publish(ctx, evt.Topic(), payload); err != nil {
		o.log.Warn("Broker publish failed, event dropped",
			"topic", evt.Topic(), "error", err)
	}
}

// Stop initiates a graceful shutdown by canceling the supervised
// context; the relay drains and exits.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
