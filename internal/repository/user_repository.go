package repository

import (
	"errors"

	"github.com/courierchat/courier/internal/entity"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *entity.User) error
	FirstOrCreate(user *entity.User) error

	GetByUUID(uuid string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)

	UpdateStatus(uuid string, status entity.UserStatus) error
}

type SQLiteUserRepository struct {
	db *gorm.DB
}

func NewSQLiteUserRepository(db *gorm.DB) UserRepository {
	return &SQLiteUserRepository{db}
}

func (repo *SQLiteUserRepository) Create(user *entity.User) error {
	return repo.db.Create(user).Error
}

// FirstOrCreate resolves a user by email, creating the passed record when
// none exists. Queries into a fresh struct so the preset UUID on user does
// not leak into the lookup conditions.
func (repo *SQLiteUserRepository) FirstOrCreate(user *entity.User) error {
	var existing entity.User
	err := repo.db.Where("email = ?", user.Email).First(&existing).Error
	if err == nil {
		*user = existing
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return repo.db.Create(user).Error
}

func (repo *SQLiteUserRepository) GetByUUID(uuid string) (*entity.User, error) {
	var user entity.User
	err := repo.db.Where("UUID = ?", uuid).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLiteUserRepository) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	err := repo.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLiteUserRepository) UpdateStatus(uuid string, status entity.UserStatus) error {
	return repo.db.Model(&entity.User{}).Where("UUID = ?", uuid).
		Update("status", status).Error
}
