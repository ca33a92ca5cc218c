package repository

import (
	"time"

	"github.com/courierchat/courier/internal/entity"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(message *entity.Message) error

	// GetByUUID loads a message together with its recipient rows.
	GetByUUID(uuid string) (*entity.Message, error)
	GetSince(roomUUID string, since time.Time) ([]*entity.Message, error)

	SaveRecipient(r *entity.Recipient) error
	TouchUpdatedAt(uuid string, at time.Time) error
}

type SQLiteMessageRepository struct {
	db *gorm.DB
}

func NewSQLiteMessageRepository(db *gorm.DB) MessageRepository {
	return &SQLiteMessageRepository{db}
}

func (repo *SQLiteMessageRepository) Create(message *entity.Message) error {
	return repo.db.Create(message).Error
}

func (repo *SQLiteMessageRepository) GetByUUID(uuid string) (*entity.Message, error) {
	var message entity.Message
	err := repo.db.Preload("Recipients").Where("UUID = ?", uuid).First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (repo *SQLiteMessageRepository) GetSince(roomUUID string, since time.Time) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := repo.db.Preload("Recipients").
		Where("room_uuid = ? AND sent_at > ?", roomUUID, since).
		Order("sent_at ASC").
		Find(&messages).Error
	return messages, err
}

func (repo *SQLiteMessageRepository) SaveRecipient(r *entity.Recipient) error {
	return repo.db.Save(r).Error
}

func (repo *SQLiteMessageRepository) TouchUpdatedAt(uuid string, at time.Time) error {
	return repo.db.Model(&entity.Message{}).Where("UUID = ?", uuid).
		Update("updated_at", at).Error
}
