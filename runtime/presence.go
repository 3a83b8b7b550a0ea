package runtime

import (
	"log/slog"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	cerrors "chat-core/errors"

	"github.com/google/uuid"
)

// PresenceTracker owns the lifecycle of participant sessions. It is
// backed by the participant repository so every process sees the same
// membership; there is no heartbeat expiry, membership changes only
// through explicit Join and Leave.
type PresenceTracker struct {
	rooms        contract.IRoomDirectory
	participants contract.IParticipantRepository
	log          *slog.Logger
}

func NewPresenceTracker(rooms contract.IRoomDirectory,
	participants contract.IParticipantRepository, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{rooms: rooms, participants: participants, log: log}
}

// Join creates and persists a new participant session in the room.
func (t *PresenceTracker) Join(roomID uuid.UUID, nickname string) (domain.Participant, error) {
	exists, err := t.rooms.Exists(roomID)
	if err != nil {
		return domain.Participant{}, err
	}
	if !exists {
		return domain.Participant{}, cerrors.ErrRoomNotFound
	}

	p := domain.NewParticipant(roomID, nickname)
	if err := t.participants.Store(p); err != nil {
		return domain.Participant{}, err
	}
	t.log.Debug("Participant joined", "participant_id", p.ID, "room_id", roomID)
	return p, nil
}

// RefreshActivity bumps and persists the last-activity timestamp.
// Called on enter and on every message send, so inactivity can be
// derived later even though no expiry runs here.
func (t *PresenceTracker) RefreshActivity(participantID uuid.UUID) (domain.Participant, error) {
	p, err := t.participants.Get(participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	p.LastActiveAt = time.Now().UTC()
	if err := t.participants.Store(p); err != nil {
		return domain.Participant{}, err
	}
	return p, nil
}

// Leave refreshes the timestamp one last time, then destroys the
// session. The returned snapshot is the pre-destruction state the
// LEAVE event must carry, since the record is gone afterwards.
func (t *PresenceTracker) Leave(participantID uuid.UUID) (domain.Participant, error) {
	if _, err := t.RefreshActivity(participantID); err != nil {
		return domain.Participant{}, err
	}
	p, err := t.participants.Delete(participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	t.log.Debug("Participant left", "participant_id", p.ID, "room_id", p.RoomID)
	return p, nil
}

// ListActive returns the current membership snapshot for a room.
func (t *PresenceTracker) ListActive(roomID uuid.UUID) ([]domain.Participant, error) {
	return t.participants.ListByRoom(roomID)
}
