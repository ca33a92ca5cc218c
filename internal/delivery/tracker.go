// Package delivery keeps the "message sent but not yet confirmed
// delivered" markers. A marker that expires before an acknowledgment
// arrives is the trigger for a fallback push: the TTL is the only timer in
// the system, there is no scheduler behind it.
package delivery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/entity"
)

const (
	// KeyPrefix prefixes the pending-delivery marker keys.
	KeyPrefix      = "message:delivery:"
	snapshotPrefix = "message:payload:"

	// DefaultTTL trades fallback latency against false positives on slow
	// deliveries. It has to exceed typical live-publish latency by a wide
	// margin while still feeling responsive.
	DefaultTTL = 5 * time.Second
)

// Key names the pending marker for one (message, recipient) pair.
func Key(messageUUID, recipientUUID string) string {
	return KeyPrefix + messageUUID + ":" + recipientUUID
}

func snapshotKey(messageUUID, recipientUUID string) string {
	return snapshotPrefix + messageUUID + ":" + recipientUUID
}

// ParseKey extracts the (message, recipient) pair from a marker key.
func ParseKey(key string) (messageUUID, recipientUUID string, ok bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(key, KeyPrefix), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type Tracker struct {
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewTracker(c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		cache:  c,
		ttl:    ttl,
		logger: logger.With().Str("component", "delivery").Logger(),
	}
}

// Track registers a pending delivery. The message payload is snapshotted
// under a second key that outlives the marker, so the expiry handler can
// still recover what to resend after the marker itself is gone.
func (t *Tracker) Track(ctx context.Context, msg *entity.Message, recipientUUID string) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := t.cache.Set(ctx, snapshotKey(msg.UUID, recipientUUID), data, 2*t.ttl); err != nil {
		return err
	}
	if err := t.cache.Set(ctx, Key(msg.UUID, recipientUUID), []byte("1"), t.ttl); err != nil {
		return err
	}
	t.logger.Debug().
		Str("message", msg.UUID).
		Str("recipient", recipientUUID).
		Dur("ttl", t.ttl).
		Msg("tracking delivery")
	return nil
}

// Acknowledge clears the pending marker once the recipient confirmed
// delivery, suppressing the fallback.
func (t *Tracker) Acknowledge(ctx context.Context, messageUUID, recipientUUID string) error {
	err := t.cache.Del(ctx,
		Key(messageUUID, recipientUUID),
		snapshotKey(messageUUID, recipientUUID))
	if err != nil {
		return err
	}
	t.logger.Debug().
		Str("message", messageUUID).
		Str("recipient", recipientUUID).
		Msg("delivery acknowledged")
	return nil
}

// Snapshot returns the payload recorded at Track time, or cache.ErrMiss if
// it was never written or already evicted. Used by the expiry handler; an
// unavailable snapshot means the fallback is silently skipped.
func (t *Tracker) Snapshot(ctx context.Context, messageUUID, recipientUUID string) (*entity.Message, error) {
	data, err := t.cache.Get(ctx, snapshotKey(messageUUID, recipientUUID))
	if err != nil {
		return nil, err
	}
	var msg entity.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
