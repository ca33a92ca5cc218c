package chat

import "errors"

var (
	ErrSenderNotFound     = errors.New("chat: sender not found")
	ErrRecipientNotFound  = errors.New("chat: recipient not found")
	ErrUserNotFound       = errors.New("chat: user not found")
	ErrRoomNotFound       = errors.New("chat: room not found")
	ErrMessageNotFound    = errors.New("chat: message not found")
	ErrMembershipNotFound = errors.New("chat: membership not found")

	ErrInvalidArgument   = errors.New("chat: invalid argument")
	ErrInvalidTransition = errors.New("chat: invalid status transition")
	ErrPermissionDenied  = errors.New("chat: permission denied")
)
