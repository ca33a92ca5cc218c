// Package notify decides, per recipient, between a live in-session
// notification and an out-of-band push.
package notify

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/entity"
	"github.com/courierchat/courier/internal/presence"
	"github.com/courierchat/courier/internal/push"
	"github.com/courierchat/courier/internal/repository"
	"github.com/courierchat/courier/internal/transport"
)

// Notification is the lightweight alert published to a recipient's
// notification queue. The message itself travels on the message channel.
type Notification struct {
	SenderUUID string `json:"sender"`
	SenderName string `json:"sender-name"`
	Content    string `json:"content"`
}

type Dispatcher struct {
	presence  *presence.Tracker
	publisher transport.Publisher
	provider  push.Provider
	devices   repository.DeviceRepository
	logger    zerolog.Logger
}

func NewDispatcher(p *presence.Tracker, publisher transport.Publisher, provider push.Provider,
	devices repository.DeviceRepository, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		presence:  p,
		publisher: publisher,
		provider:  provider,
		devices:   devices,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Notify alerts every recipient except the sender. Online recipients get a
// Notification on their private queue; offline ones get a push per
// registered device. With forced set the presence check is skipped and
// everything goes to push: the caller already knows the live path failed.
// Each recipient's outcome is independent; failures are logged and the
// remaining recipients are still processed.
func (d *Dispatcher) Notify(ctx context.Context, sender *entity.User, msg *entity.Message,
	recipientUUIDs []string, forced bool) {

	notification := Notification{
		SenderUUID: sender.UUID,
		SenderName: sender.FirstName,
		Content:    msg.Content,
	}

	for _, recipientUUID := range recipientUUIDs {
		if recipientUUID == sender.UUID {
			continue
		}

		if !forced && d.presence.IsOnline(ctx, recipientUUID) {
			d.logger.Info().Str("recipient", recipientUUID).Msg("recipient online, publishing live notification")
			d.publishLive(ctx, recipientUUID, notification)
			continue
		}

		d.logger.Info().Str("recipient", recipientUUID).Bool("forced", forced).
			Msg("recipient offline, sending push")
		d.sendPush(ctx, recipientUUID, notification)
	}
}

func (d *Dispatcher) publishLive(ctx context.Context, recipientUUID string, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Error().Err(err).Str("recipient", recipientUUID).Msg("could not encode notification")
		return
	}
	destination := transport.NotificationDestination(recipientUUID)
	if err := d.publisher.Publish(ctx, destination, payload); err != nil {
		d.logger.Error().Err(err).Str("destination", destination).Msg("live notification failed")
	}
}

func (d *Dispatcher) sendPush(ctx context.Context, recipientUUID string, n Notification) {
	tokens, err := d.devices.TokensByUser(recipientUUID)
	if err != nil {
		d.logger.Error().Err(err).Str("recipient", recipientUUID).Msg("device token lookup failed")
		return
	}
	for _, token := range tokens {
		if err := d.provider.Push(ctx, token, n.SenderName, n.Content); err != nil {
			d.logger.Error().Err(err).Str("recipient", recipientUUID).Msg("push failed")
		}
	}
}
