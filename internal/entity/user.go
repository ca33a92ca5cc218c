package entity

import (
	"time"

	"gorm.io/gorm"
)

type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusOffline UserStatus = "OFFLINE"
)

type User struct {
	UUID      string         `gorm:"primaryKey" json:"uuid"`
	FirstName string         `gorm:"not null" json:"first-name"`
	LastName  string         `json:"last-name"`
	Email     string         `gorm:"uniqueIndex" json:"email"`
	Status    UserStatus     `gorm:"not null;default:'OFFLINE'" json:"status"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created-at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Devices []UserDevice `gorm:"foreignKey:UserUUID;references:UUID" json:"-"`
}

// UserDevice holds a push token registered by one of the user's clients.
type UserDevice struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	UserUUID    string    `gorm:"not null;index" json:"user-uuid"`
	DeviceToken string    `gorm:"not null;uniqueIndex" json:"device-token"`
	LastActive  time.Time `json:"last-active"`
}
