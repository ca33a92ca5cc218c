package transport

import (
	"fmt"

	"github.com/courierchat/courier/internal/entity"
)

// Destination names are part of the client contract and must not change.
const (
	personalTopic     = "/user/%s/queue/messages"
	groupTopic        = "/topic/chat-room.%s"
	notificationTopic = "/user/%s/queue/notifications"
)

// MessageDestination resolves where a message is published: PERSONAL rooms
// go to the single recipient's private queue, GROUP rooms to the room's
// broadcast topic. Pure and deterministic so a retry lands on the same
// destination.
func MessageDestination(roomType entity.RoomType, roomUUID string, recipientUUIDs []string) (string, error) {
	switch roomType {
	case entity.RoomPersonal:
		if len(recipientUUIDs) != 1 {
			return "", fmt.Errorf("personal room %s has %d recipients, want 1", roomUUID, len(recipientUUIDs))
		}
		return fmt.Sprintf(personalTopic, recipientUUIDs[0]), nil
	case entity.RoomGroup:
		return fmt.Sprintf(groupTopic, roomUUID), nil
	default:
		return "", fmt.Errorf("unsupported room type %q", roomType)
	}
}

// NotificationDestination is the recipient's alert queue, distinct from the
// queue carrying the messages themselves.
func NotificationDestination(recipientUUID string) string {
	return fmt.Sprintf(notificationTopic, recipientUUID)
}
