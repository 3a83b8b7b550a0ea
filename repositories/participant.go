package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	cerrors "chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// deleteRetries bounds the conflict-retry loop on concurrent deletes.
const deleteRetries = 3

type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) ParticipantRepository {
	return ParticipantRepository{db: db, log: log}
}

type diskParticipant struct {
	ID           uuid.UUID `json:"id"`
	RoomID       uuid.UUID `json:"room_id"`
	Nickname     string    `json:"nickname"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func participantKey(id uuid.UUID) []byte {
	return []byte("participant:" + id.String())
}

// memberKey indexes a participant under its room so ListByRoom is a
// single prefix scan.
func memberKey(roomID, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", roomID, id))
}

// Store writes the participant record and its room index entry in one
// transaction. It is used for both creation and activity refreshes.
func (r ParticipantRepository) Store(p domain.Participant) error {
	data, err := json.Marshal(diskParticipant(p))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(participantKey(p.ID), data); err != nil {
			return err
		}
		return txn.Set(memberKey(p.RoomID, p.ID), data)
	})
}

func (r ParticipantRepository) Get(id uuid.UUID) (domain.Participant, error) {
	var dp diskParticipant
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dp)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Participant{}, cerrors.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant(dp), nil
}

// ListByRoom returns the current membership snapshot of a room.
func (r ParticipantRepository) ListByRoom(roomID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:%s:", roomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dp diskParticipant
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dp)
			})
			if err != nil {
				return err
			}
			participants = append(participants, domain.Participant(dp))
		}
		return nil
	})
	return participants, err
}

// Delete removes the record and its index entry, returning the last
// persisted state. Read and delete happen in a single transaction so
// two concurrent leaves cannot both succeed: the loser either hits
// ErrKeyNotFound or a badger conflict, which we retry until the key
// is observed gone.
func (r ParticipantRepository) Delete(id uuid.UUID) (domain.Participant, error) {
	var dp diskParticipant
	var err error
	for attempt := 0; attempt < deleteRetries; attempt++ {
		err = r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(participantKey(id))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dp)
			}); err != nil {
				return err
			}
			if err := txn.Delete(participantKey(id)); err != nil {
				return err
			}
			return txn.Delete(memberKey(dp.RoomID, id))
		})
		if err != badger.ErrConflict {
			break
		}
		r.log.Debug("Delete conflict, retrying", "participant_id", id)
	}
	if err == badger.ErrKeyNotFound {
		return domain.Participant{}, cerrors.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant(dp), nil
}

var _ contract.IParticipantRepository = ParticipantRepository{}
