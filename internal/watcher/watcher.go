// Package watcher is the single consumer of the cache's key-expiration
// stream. It turns expirations into actions: an expired delivery marker
// becomes a forced fallback notification, an expired presence record
// becomes a persisted offline transition. Best effort, at-least-once; there
// is no replay behind the stream.
package watcher

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/delivery"
	"github.com/courierchat/courier/internal/notify"
	"github.com/courierchat/courier/internal/presence"
	"github.com/courierchat/courier/internal/repository"
)

type Watcher struct {
	cache      cache.Cache
	deliveries *delivery.Tracker
	presences  *presence.Tracker
	users      repository.UserRepository
	dispatcher *notify.Dispatcher
	logger     zerolog.Logger
}

func New(c cache.Cache, deliveries *delivery.Tracker, presences *presence.Tracker,
	users repository.UserRepository, dispatcher *notify.Dispatcher, logger zerolog.Logger) *Watcher {
	return &Watcher{
		cache:      c,
		deliveries: deliveries,
		presences:  presences,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "watcher").Logger(),
	}
}

// Run consumes expired-key events until the context is cancelled or the
// stream closes. One Run per process.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().Msg("expiration watcher running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-w.cache.Expired():
			if !ok {
				return nil
			}
			w.handle(ctx, key)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, key string) {
	if messageUUID, recipientUUID, ok := delivery.ParseKey(key); ok {
		w.handleDeliveryExpiry(ctx, messageUUID, recipientUUID)
		return
	}
	if userUUID, ok := presence.ParseStatusKey(key); ok {
		w.handlePresenceExpiry(ctx, userUUID)
		return
	}
	// Keys from other subsystems share the same notification stream.
}

// handleDeliveryExpiry fires the fallback for a delivery that was never
// acknowledged. Forced: the live path already failed to reach the recipient
// inside the TTL window, so the presence check is pointless.
func (w *Watcher) handleDeliveryExpiry(ctx context.Context, messageUUID, recipientUUID string) {
	msg, err := w.deliveries.Snapshot(ctx, messageUUID, recipientUUID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			w.logger.Warn().Str("message", messageUUID).Str("recipient", recipientUUID).
				Msg("delivery expired but snapshot is gone, dropping fallback")
		} else {
			w.logger.Error().Err(err).Str("message", messageUUID).Msg("snapshot read failed")
		}
		return
	}

	sender, err := w.users.GetByUUID(msg.SenderUUID)
	if err != nil {
		w.logger.Error().Err(err).Str("sender", msg.SenderUUID).Msg("sender lookup failed on fallback")
		return
	}

	w.logger.Warn().Str("message", messageUUID).Str("recipient", recipientUUID).
		Msg("delivery not confirmed within TTL, forcing notification")
	w.dispatcher.Notify(ctx, sender, msg, []string{recipientUUID}, true)
}

func (w *Watcher) handlePresenceExpiry(ctx context.Context, userUUID string) {
	if err := w.presences.HandleExpiry(ctx, userUUID); err != nil {
		w.logger.Error().Err(err).Str("user", userUUID).Msg("offline transition failed")
	}
}
