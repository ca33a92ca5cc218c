package entity

import "time"

type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

type Message struct {
	UUID       string    `gorm:"primaryKey" json:"uuid"`
	Content    string    `gorm:"not null" json:"content"`
	SenderUUID string    `gorm:"index" json:"sender"`
	RoomUUID   string    `gorm:"not null;index" json:"room"`
	SentAt     time.Time `gorm:"not null;index" json:"sent-at"`
	UpdatedAt  time.Time `json:"updated-at"`

	Recipients []Recipient `gorm:"foreignKey:MessageUUID;references:UUID" json:"recipients"`
}

// Recipient is the per-user delivery state of a message. Rows are created
// together with their message and only ever move forward
// (SENT -> DELIVERED -> READ).
type Recipient struct {
	ID          uint64        `gorm:"primaryKey" json:"-"`
	MessageUUID string        `gorm:"not null;index" json:"-"`
	UserUUID    string        `gorm:"not null;index" json:"recipient"`
	Status      MessageStatus `gorm:"not null;default:'SENT'" json:"status"`
	DeliveredAt *time.Time    `json:"delivered-at"`
	ReadAt      *time.Time    `json:"read-at"`
}
