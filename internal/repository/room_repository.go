package repository

import (
	"github.com/courierchat/courier/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomRepository interface {
	Create(room *entity.Room, memberships []entity.Membership) error
	// GetOrCreatePersonal resolves the PERSONAL room for the member pair
	// baked into room.PairKey, creating room and memberships atomically
	// when no such room exists yet. Safe under concurrent first contact.
	GetOrCreatePersonal(room *entity.Room, memberships []entity.Membership) (*entity.Room, error)

	GetByUUID(uuid string) (*entity.Room, error)
	Delete(uuid string) error

	Memberships(roomUUID string) ([]*entity.Membership, error)
	Membership(userUUID, roomUUID string) (*entity.Membership, error)
	SaveMembership(m *entity.Membership) error
	RemoveMembership(m *entity.Membership) error
}

// PairKey identifies the PERSONAL room of two users regardless of who
// messaged first.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

type SQLiteRoomRepository struct {
	db *gorm.DB
}

func NewSQLiteRoomRepository(db *gorm.DB) RoomRepository {
	return &SQLiteRoomRepository{db}
}

func (repo *SQLiteRoomRepository) Create(room *entity.Room, memberships []entity.Membership) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		for i := range memberships {
			memberships[i].RoomUUID = room.UUID
		}
		return tx.Create(&memberships).Error
	})
}

func (repo *SQLiteRoomRepository) GetOrCreatePersonal(room *entity.Room, memberships []entity.Membership) (*entity.Room, error) {
	err := repo.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Create(room)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race (or the room simply existed): load the winner.
			// Fresh destination, otherwise First would filter on the
			// generated UUID already sitting in room.
			var existing entity.Room
			if err := tx.Where("pair_key = ?", *room.PairKey).First(&existing).Error; err != nil {
				return err
			}
			*room = existing
			return nil
		}
		for i := range memberships {
			memberships[i].RoomUUID = room.UUID
		}
		return tx.Create(&memberships).Error
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (repo *SQLiteRoomRepository) GetByUUID(uuid string) (*entity.Room, error) {
	var room entity.Room
	err := repo.db.Where("UUID = ?", uuid).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (repo *SQLiteRoomRepository) Delete(uuid string) error {
	return repo.db.Where("UUID = ?", uuid).Delete(&entity.Room{}).Error
}

func (repo *SQLiteRoomRepository) Memberships(roomUUID string) ([]*entity.Membership, error) {
	var memberships []*entity.Membership
	err := repo.db.Where("room_uuid = ?", roomUUID).
		Order("joined_at ASC, id ASC").
		Find(&memberships).Error
	return memberships, err
}

func (repo *SQLiteRoomRepository) Membership(userUUID, roomUUID string) (*entity.Membership, error) {
	var m entity.Membership
	err := repo.db.Where("user_uuid = ? AND room_uuid = ?", userUUID, roomUUID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (repo *SQLiteRoomRepository) SaveMembership(m *entity.Membership) error {
	return repo.db.Save(m).Error
}

func (repo *SQLiteRoomRepository) RemoveMembership(m *entity.Membership) error {
	return repo.db.Delete(m).Error
}
