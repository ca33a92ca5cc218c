package entity

import (
	"time"

	"gorm.io/gorm"
)

type RoomType string

const (
	RoomPersonal RoomType = "PERSONAL"
	RoomGroup    RoomType = "GROUP"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

type Room struct {
	UUID        string         `gorm:"primaryKey" json:"uuid"`
	Name        string         `gorm:"not null" json:"name"`
	CreatorUUID string         `gorm:"index" json:"creator"`
	Type        RoomType       `gorm:"not null;index" json:"type"`
	PairKey     *string        `gorm:"uniqueIndex" json:"-"` // sorted member pair, set for PERSONAL rooms only
	CreatedAt   time.Time      `gorm:"not null" json:"created-at"`
	UpdatedAt   time.Time      `json:"updated-at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Memberships []Membership `gorm:"foreignKey:RoomUUID;references:UUID" json:"memberships"`
}

// Membership ties a user to a room. LeftAt doubles as the soft-delete
// marker, so default queries only ever see active memberships.
type Membership struct {
	ID       uint64         `gorm:"primaryKey" json:"id"`
	RoomUUID string         `gorm:"not null;index" json:"room"`
	UserUUID string         `gorm:"not null;index" json:"user"`
	Role     MemberRole     `gorm:"not null;default:'MEMBER'" json:"role"`
	JoinedAt time.Time      `gorm:"not null;index" json:"joined-at"`
	LeftAt   gorm.DeletedAt `gorm:"index" json:"left-at"`
}
