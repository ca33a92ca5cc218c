package repository

import (
	"time"

	"github.com/courierchat/courier/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository interface {
	Save(device *entity.UserDevice) error
	Remove(deviceToken string) error

	TokensByUser(userUUID string) ([]string, error)
}

type SQLiteDeviceRepository struct {
	db *gorm.DB
}

func NewSQLiteDeviceRepository(db *gorm.DB) DeviceRepository {
	return &SQLiteDeviceRepository{db}
}

func (repo *SQLiteDeviceRepository) Save(device *entity.UserDevice) error {
	device.LastActive = time.Now()
	return repo.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_uuid", "last_active"}),
	}).Create(device).Error
}

func (repo *SQLiteDeviceRepository) Remove(deviceToken string) error {
	return repo.db.Where("device_token = ?", deviceToken).Delete(&entity.UserDevice{}).Error
}

func (repo *SQLiteDeviceRepository) TokensByUser(userUUID string) ([]string, error) {
	var tokens []string
	err := repo.db.Model(&entity.UserDevice{}).
		Where("user_uuid = ?", userUUID).
		Pluck("device_token", &tokens).Error
	return tokens, err
}
