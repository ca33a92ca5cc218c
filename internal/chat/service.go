// Package chat is the message router: it resolves senders, recipients and
// rooms, fans messages out to per-recipient delivery records, publishes
// them, and hands notification work to the dispatcher.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/delivery"
	"github.com/courierchat/courier/internal/entity"
	"github.com/courierchat/courier/internal/notify"
	"github.com/courierchat/courier/internal/repository"
	"github.com/courierchat/courier/internal/transport"
)

const systemUserEmail = "system@chat"

type Service interface {
	// SendMessage delivers content from the sender to either a direct
	// recipient (PERSONAL, room resolved or created on the fly) or an
	// existing room. Exactly one of recipientUUID / roomUUID must be set.
	SendMessage(ctx context.Context, senderUUID, recipientUUID, roomUUID, content string) (*entity.Message, error)

	// UpdateMessageStatus moves one recipient's state forward
	// (SENT -> DELIVERED -> READ) and republishes the message so every
	// subscriber observes the change. Skip-ahead and backward transitions
	// are rejected.
	UpdateMessageStatus(ctx context.Context, messageUUID, recipientUUID string, status entity.MessageStatus) (*entity.Message, error)

	MessagesSince(ctx context.Context, roomUUID, userUUID string, since time.Time) ([]*entity.Message, error)

	CreateGroup(ctx context.Context, name, creatorUUID string, participantUUIDs []string) (*entity.Room, error)
	ChangeRole(ctx context.Context, roomUUID, actorUUID, userUUID string, role entity.MemberRole) error
	LeaveGroup(ctx context.Context, roomUUID, userUUID string) error

	SystemUserUUID() string
}

type routerService struct {
	users      repository.UserRepository
	rooms      repository.RoomRepository
	messages   repository.MessageRepository
	publisher  transport.Publisher
	dispatcher *notify.Dispatcher
	tracker    *delivery.Tracker
	logger     zerolog.Logger
	systemUser *entity.User
}

func NewService(users repository.UserRepository, rooms repository.RoomRepository,
	messages repository.MessageRepository, publisher transport.Publisher,
	dispatcher *notify.Dispatcher, tracker *delivery.Tracker, logger zerolog.Logger) (Service, error) {

	// Announcements (group created, member left) are authored by a
	// well-known system user.
	system := &entity.User{
		UUID:      uuid.NewString(),
		FirstName: "System",
		Email:     systemUserEmail,
		CreatedAt: time.Now(),
	}
	if err := users.FirstOrCreate(system); err != nil {
		return nil, fmt.Errorf("ensuring system user: %w", err)
	}

	return &routerService{
		users:      users,
		rooms:      rooms,
		messages:   messages,
		publisher:  publisher,
		dispatcher: dispatcher,
		tracker:    tracker,
		logger:     logger.With().Str("component", "chat").Logger(),
		systemUser: system,
	}, nil
}

func (s *routerService) SystemUserUUID() string {
	return s.systemUser.UUID
}

func (s *routerService) SendMessage(ctx context.Context, senderUUID, recipientUUID, roomUUID, content string) (*entity.Message, error) {
	sender, err := s.users.GetByUUID(senderUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSenderNotFound, senderUUID)
	}

	var room *entity.Room
	if roomUUID == "" {
		if recipientUUID == "" {
			return nil, fmt.Errorf("%w: need a recipient or a room", ErrInvalidArgument)
		}
		recipient, err := s.users.GetByUUID(recipientUUID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, recipientUUID)
		}
		room, err = s.findOrCreatePersonalRoom(sender, recipient)
		if err != nil {
			return nil, err
		}
	} else {
		room, err = s.rooms.GetByUUID(roomUUID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomUUID)
		}
		if _, err := s.rooms.Membership(sender.UUID, room.UUID); err != nil {
			return nil, fmt.Errorf("%w: user %s in room %s", ErrMembershipNotFound, sender.UUID, roomUUID)
		}
	}

	recipients, err := s.recipientsFor(room, sender.UUID)
	if err != nil {
		return nil, err
	}

	return s.processSend(ctx, sender, room, content, recipients, true)
}

// findOrCreatePersonalRoom resolves the two-party room, creating room and
// both memberships in one unit of work when this is first contact. The
// pair-key uniqueness makes concurrent first contact collapse onto a single
// room.
func (s *routerService) findOrCreatePersonalRoom(sender, recipient *entity.User) (*entity.Room, error) {
	pair := repository.PairKey(sender.UUID, recipient.UUID)
	now := time.Now()
	room := &entity.Room{
		UUID:        uuid.NewString(),
		Name:        sender.FirstName + " & " + recipient.FirstName,
		CreatorUUID: sender.UUID,
		Type:        entity.RoomPersonal,
		PairKey:     &pair,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	memberships := []entity.Membership{
		{UserUUID: sender.UUID, Role: entity.RoleMember, JoinedAt: now},
		{UserUUID: recipient.UUID, Role: entity.RoleMember, JoinedAt: now},
	}
	return s.rooms.GetOrCreatePersonal(room, memberships)
}

// recipientsFor computes the fan-out set: every active member of the room
// except the sender.
func (s *routerService) recipientsFor(room *entity.Room, senderUUID string) ([]string, error) {
	memberships, err := s.rooms.Memberships(room.UUID)
	if err != nil {
		return nil, err
	}
	recipients := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.UserUUID != senderUUID {
			recipients = append(recipients, m.UserUUID)
		}
	}
	return recipients, nil
}

// processSend persists the message with its recipient rows, then kicks off
// publish, delivery tracking and notification as background work. The
// message counts as sent once persisted; failures past that point are
// logged, never surfaced.
func (s *routerService) processSend(ctx context.Context, sender *entity.User, room *entity.Room,
	content string, recipients []string, sendNotification bool) (*entity.Message, error) {

	now := time.Now()
	msg := &entity.Message{
		UUID:       uuid.NewString(),
		Content:    content,
		SenderUUID: sender.UUID,
		RoomUUID:   room.UUID,
		SentAt:     now,
		UpdatedAt:  now,
	}
	for _, recipientUUID := range recipients {
		msg.Recipients = append(msg.Recipients, entity.Recipient{
			MessageUUID: msg.UUID,
			UserUUID:    recipientUUID,
			Status:      entity.StatusSent,
		})
	}

	if err := s.messages.Create(msg); err != nil {
		return nil, err
	}
	s.logger.Info().Str("message", msg.UUID).Str("room", room.UUID).
		Int("recipients", len(recipients)).Msg("message persisted")

	bg := context.WithoutCancel(ctx)
	s.publishAndTrack(bg, room, msg, recipients)
	if sendNotification {
		go s.dispatcher.Notify(bg, sender, msg, recipients, false)
	}

	return msg, nil
}

func (s *routerService) publishAndTrack(ctx context.Context, room *entity.Room, msg *entity.Message, recipients []string) {
	destination, err := transport.MessageDestination(room.Type, room.UUID, recipients)
	if err != nil {
		s.logger.Error().Err(err).Str("message", msg.UUID).Msg("cannot resolve destination")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("message", msg.UUID).Msg("cannot encode message")
		return
	}

	go func() {
		if err := s.publisher.Publish(ctx, destination, payload); err != nil {
			s.logger.Error().Err(err).Str("destination", destination).Msg("publish failed")
		}
		for _, recipientUUID := range recipients {
			if err := s.tracker.Track(ctx, msg, recipientUUID); err != nil {
				s.logger.Error().Err(err).
					Str("message", msg.UUID).
					Str("recipient", recipientUUID).
					Msg("delivery tracking failed")
			}
		}
	}()
}

func (s *routerService) UpdateMessageStatus(ctx context.Context, messageUUID, recipientUUID string, status entity.MessageStatus) (*entity.Message, error) {
	msg, err := s.messages.GetByUUID(messageUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageUUID)
	}

	var recipient *entity.Recipient
	for i := range msg.Recipients {
		if msg.Recipients[i].UserUUID == recipientUUID {
			recipient = &msg.Recipients[i]
			break
		}
	}
	if recipient == nil {
		return nil, fmt.Errorf("%w: %s in message %s", ErrRecipientNotFound, recipientUUID, messageUUID)
	}

	now := time.Now()
	switch status {
	case entity.StatusDelivered:
		if recipient.Status != entity.StatusSent {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, recipient.Status, status)
		}
		recipient.Status = entity.StatusDelivered
		recipient.DeliveredAt = &now
	case entity.StatusRead:
		if recipient.Status != entity.StatusDelivered {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, recipient.Status, status)
		}
		recipient.Status = entity.StatusRead
		recipient.ReadAt = &now
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, status)
	}

	if err := s.messages.SaveRecipient(recipient); err != nil {
		return nil, err
	}
	if err := s.messages.TouchUpdatedAt(msg.UUID, now); err != nil {
		return nil, err
	}
	msg.UpdatedAt = now

	bg := context.WithoutCancel(ctx)
	if status == entity.StatusDelivered {
		// Confirmed in time: clear the pending marker so no fallback fires.
		if err := s.tracker.Acknowledge(bg, msg.UUID, recipientUUID); err != nil {
			s.logger.Error().Err(err).Str("message", msg.UUID).Msg("acknowledge failed")
		}
	}

	s.republish(bg, msg)
	return msg, nil
}

// republish pushes the mutated message back onto its original destination
// so all subscribers observe the status change.
func (s *routerService) republish(ctx context.Context, msg *entity.Message) {
	room, err := s.rooms.GetByUUID(msg.RoomUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("room", msg.RoomUUID).Msg("room lookup failed on republish")
		return
	}
	recipients := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		recipients = append(recipients, r.UserUUID)
	}

	destination, err := transport.MessageDestination(room.Type, room.UUID, recipients)
	if err != nil {
		s.logger.Error().Err(err).Str("message", msg.UUID).Msg("cannot resolve destination")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("message", msg.UUID).Msg("cannot encode message")
		return
	}
	go func() {
		if err := s.publisher.Publish(ctx, destination, payload); err != nil {
			s.logger.Error().Err(err).Str("destination", destination).Msg("republish failed")
		}
	}()
}

func (s *routerService) MessagesSince(ctx context.Context, roomUUID, userUUID string, since time.Time) ([]*entity.Message, error) {
	if _, err := s.rooms.Membership(userUUID, roomUUID); err != nil {
		return nil, fmt.Errorf("%w: user %s in room %s", ErrMembershipNotFound, userUUID, roomUUID)
	}
	return s.messages.GetSince(roomUUID, since)
}

func (s *routerService) CreateGroup(ctx context.Context, name, creatorUUID string, participantUUIDs []string) (*entity.Room, error) {
	creator, err := s.users.GetByUUID(creatorUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, creatorUUID)
	}

	// Creator always participates, whether or not the caller listed them.
	seen := map[string]bool{creator.UUID: true}
	participants := []string{creator.UUID}
	for _, participantUUID := range participantUUIDs {
		if seen[participantUUID] {
			continue
		}
		if _, err := s.users.GetByUUID(participantUUID); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, participantUUID)
		}
		seen[participantUUID] = true
		participants = append(participants, participantUUID)
	}

	now := time.Now()
	room := &entity.Room{
		UUID:        uuid.NewString(),
		Name:        name,
		CreatorUUID: creator.UUID,
		Type:        entity.RoomGroup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	memberships := make([]entity.Membership, 0, len(participants))
	for _, participantUUID := range participants {
		role := entity.RoleMember
		if participantUUID == creator.UUID {
			role = entity.RoleAdmin
		}
		memberships = append(memberships, entity.Membership{
			UserUUID: participantUUID,
			Role:     role,
			JoinedAt: now,
		})
	}
	if err := s.rooms.Create(room, memberships); err != nil {
		return nil, err
	}
	s.logger.Info().Str("room", room.UUID).Str("name", name).
		Int("members", len(participants)).Msg("group created")

	content := "Group " + name + " created by " + creator.FirstName + " " + creator.LastName
	recipients := participants[1:] // everyone but the creator
	if _, err := s.processSend(ctx, creator, room, content, recipients, true); err != nil {
		return nil, err
	}

	return room, nil
}

func (s *routerService) ChangeRole(ctx context.Context, roomUUID, actorUUID, userUUID string, role entity.MemberRole) error {
	if role != entity.RoleAdmin && role != entity.RoleMember {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}

	room, err := s.rooms.GetByUUID(roomUUID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomUUID)
	}
	if room.Type != entity.RoomGroup {
		return fmt.Errorf("%w: role changes only apply to group rooms", ErrInvalidArgument)
	}

	if _, err := s.users.GetByUUID(userUUID); err != nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userUUID)
	}

	actor, err := s.rooms.Membership(actorUUID, room.UUID)
	if err != nil {
		return fmt.Errorf("%w: user %s in room %s", ErrMembershipNotFound, actorUUID, roomUUID)
	}
	if actor.Role != entity.RoleAdmin {
		return fmt.Errorf("%w: %s is not an admin of %s", ErrPermissionDenied, actorUUID, roomUUID)
	}

	target, err := s.rooms.Membership(userUUID, room.UUID)
	if err != nil {
		return fmt.Errorf("%w: user %s in room %s", ErrMembershipNotFound, userUUID, roomUUID)
	}

	target.Role = role
	if err := s.rooms.SaveMembership(target); err != nil {
		return err
	}
	s.logger.Info().Str("room", roomUUID).Str("user", userUUID).Str("role", string(role)).
		Msg("membership role changed")
	return nil
}

func (s *routerService) LeaveGroup(ctx context.Context, roomUUID, userUUID string) error {
	room, err := s.rooms.GetByUUID(roomUUID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomUUID)
	}
	if room.Type != entity.RoomGroup {
		return fmt.Errorf("%w: leaving only applies to group rooms", ErrInvalidArgument)
	}

	user, err := s.users.GetByUUID(userUUID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userUUID)
	}

	membership, err := s.rooms.Membership(userUUID, room.UUID)
	if err != nil {
		return fmt.Errorf("%w: user %s in room %s", ErrMembershipNotFound, userUUID, roomUUID)
	}

	if err := s.rooms.RemoveMembership(membership); err != nil {
		return err
	}

	remaining, err := s.rooms.Memberships(room.UUID)
	if err != nil {
		return err
	}

	if len(remaining) == 0 {
		s.logger.Info().Str("room", roomUUID).Msg("last member left, deleting room")
		return s.rooms.Delete(room.UUID)
	}

	if membership.Role == entity.RoleAdmin && !hasAdmin(remaining) {
		// Deterministic succession: the earliest-joined remaining member.
		successor := remaining[0]
		successor.Role = entity.RoleAdmin
		if err := s.rooms.SaveMembership(successor); err != nil {
			return err
		}
		s.logger.Info().Str("room", roomUUID).Str("user", successor.UserUUID).
			Msg("admin role transferred")
	}

	content := user.FirstName + " " + user.LastName + " has left the group"
	recipients := make([]string, 0, len(remaining))
	for _, m := range remaining {
		recipients = append(recipients, m.UserUUID)
	}
	if _, err := s.processSend(ctx, s.systemUser, room, content, recipients, false); err != nil {
		return err
	}

	return nil
}

func hasAdmin(memberships []*entity.Membership) bool {
	for _, m := range memberships {
		if m.Role == entity.RoleAdmin {
			return true
		}
	}
	return false
}
