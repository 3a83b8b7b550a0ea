//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-core/domain"
	"chat-core/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events fanned out to one subscriber.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which local subscribers follow which topic.
type IRegistry interface {
	GetSinksForTopic(topic event.Topic) []EventSink
	Subscribe(subscriberID string, topic event.Topic, sink EventSink)
	Unsubscribe(subscriberID string, topic event.Topic)
}

// Envelope is a raw broker frame: the topic it was published on and
// the encoded event payload.
type Envelope struct {
	Topic   string
	Payload []byte
}

// IBroker is the narrow view of the external publish/subscribe broker.
// Delivery is best-effort from the core's perspective; durable state
// never depends on a publish succeeding.
type IBroker interface {
	Publish(ctx context.Context, topic event.Topic, payload []byte) error
	Subscribe(ctx context.Context, pattern string) (<-chan Envelope, error)
	Close() error
}

// IRoomDirectory is the narrow view of the room CRUD collaborator.
type IRoomDirectory interface {
	Exists(roomID uuid.UUID) (bool, error)
	Get(roomID uuid.UUID) (domain.Room, error)
	Ref(roomID uuid.UUID) (domain.RoomRef, error)
}

type IMessageRepository interface {
	Append(message domain.Message) error
	History(roomID uuid.UUID) ([]domain.Message, error)
}

type IParticipantRepository interface {
	Store(p domain.Participant) error
	Get(id uuid.UUID) (domain.Participant, error)
	ListByRoom(roomID uuid.UUID) ([]domain.Participant, error)
	// Delete removes the participant and returns its last persisted
	// state. Exactly one of two concurrent deletes succeeds.
	Delete(id uuid.UUID) (domain.Participant, error)
}
