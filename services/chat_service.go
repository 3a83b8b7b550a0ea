package services

import (
	"context"

	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/runtime"

	"github.com/google/uuid"
)

// IChatService is the surface a gateway (WebSocket, gRPC, whatever
// fronts the core) consumes.
type IChatService interface {
	Join(ctx context.Context, cmd domain.JoinCommand) (domain.Participant, error)
	Enter(ctx context.Context, participantID uuid.UUID) (event.PresenceChanged, error)
	Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, error)
	Leave(ctx context.Context, participantID uuid.UUID) (event.PresenceChanged, error)
	SubscribeMessages(ctx context.Context, roomID uuid.UUID) ([]domain.Message, <-chan event.DomainEvent, error)
	SubscribeMembers(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, <-chan event.DomainEvent, error)
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) Join(ctx context.Context, cmd domain.JoinCommand) (domain.Participant, error) {
	return s.orchestrator.Join(ctx, cmd)
}

func (s *ChatService) Enter(ctx context.Context, participantID uuid.UUID) (event.PresenceChanged, error) {
	return s.orchestrator.Enter(ctx, participantID)
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, error) {
	return s.orchestrator.Send(ctx, cmd)
}

func (s *ChatService) Leave(ctx context.Context, participantID uuid.UUID) (event.PresenceChanged, error) {
	return s.orchestrator.Leave(ctx, participantID)
}

func (s *ChatService) SubscribeMessages(ctx context.Context, roomID uuid.UUID) ([]domain.Message, <-chan event.DomainEvent, error) {
	return s.orchestrator.SubscribeMessages(ctx, roomID)
}

func (s *ChatService) SubscribeMembers(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, <-chan event.DomainEvent, error) {
	return s.orchestrator.SubscribeMembers(ctx, roomID)
}

var _ IChatService = (*ChatService)(nil)
