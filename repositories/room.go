package repositories

import (
	"encoding/json"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	cerrors "chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// RoomRepository implements the room directory the core consumes.
// The write surface (Create, DeleteByID) belongs to the external CRUD
// collaborator; it lives here so the seeding tool and tests have a
// concrete directory to work against.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type diskRoom struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func roomKey(id uuid.UUID) []byte {
	return []byte("room:" + id.String())
}

func (r RoomRepository) Create(room domain.Room) error {
	data, err := json.Marshal(diskRoom(room))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), data)
	})
}

func (r RoomRepository) Exists(roomID uuid.UUID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(roomID))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r RoomRepository) Get(roomID uuid.UUID) (domain.Room, error) {
	var dr diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dr)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, cerrors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room(dr), nil
}

// Ref checks key presence without decoding the record, which is all a
// foreign-key style use needs.
func (r RoomRepository) Ref(roomID uuid.UUID) (domain.RoomRef, error) {
	exists, err := r.Exists(roomID)
	if err != nil {
		return domain.RoomRef{}, err
	}
	if !exists {
		return domain.RoomRef{}, cerrors.ErrRoomNotFound
	}
	return domain.RoomRef(roomID), nil
}

func (r RoomRepository) List() ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dr diskRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dr)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, domain.Room(dr))
		}
		return nil
	})
	return rooms, err
}

func (r RoomRepository) DeleteByID(roomID uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err == badger.ErrKeyNotFound {
			return cerrors.ErrRoomNotFound
		}
		return txn.Delete(roomKey(roomID))
	})
}

var _ contract.IRoomDirectory = RoomRepository{}
