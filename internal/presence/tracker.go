// Package presence answers whether a user is currently reachable over a
// live connection. State lives only in the cache: a user who drops off the
// network without a graceful disconnect stays apparently online for at most
// one TTL window.
package presence

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/entity"
	"github.com/courierchat/courier/internal/repository"
)

const (
	// StatusKeyPrefix prefixes the per-user presence keys in the cache.
	StatusKeyPrefix = "user:status:"
	onlineUsersKey  = "online:users"

	// DefaultTTL bounds how stale "online" can be after an ungraceful drop.
	DefaultTTL = 60 * time.Second
)

// StatusKey returns the cache key holding a user's presence record.
func StatusKey(userUUID string) string {
	return StatusKeyPrefix + userUUID
}

// ParseStatusKey extracts the user id from a presence key.
func ParseStatusKey(key string) (string, bool) {
	if !strings.HasPrefix(key, StatusKeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, StatusKeyPrefix), true
}

type Tracker struct {
	cache  cache.Cache
	users  repository.UserRepository
	ttl    time.Duration
	logger zerolog.Logger
}

func NewTracker(c cache.Cache, users repository.UserRepository, ttl time.Duration, logger zerolog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		cache:  c,
		users:  users,
		ttl:    ttl,
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// MarkOnline refreshes the user's presence record. Called on connect and on
// every heartbeat.
func (t *Tracker) MarkOnline(ctx context.Context, userUUID string) error {
	if err := t.cache.Set(ctx, StatusKey(userUUID), []byte(entity.StatusOnline), t.ttl); err != nil {
		return err
	}
	if err := t.cache.SAdd(ctx, onlineUsersKey, userUUID); err != nil {
		return err
	}
	t.logger.Debug().Str("user", userUUID).Msg("marked online")
	return nil
}

// MarkOffline removes the presence record. Called on graceful disconnect or
// logout; ungraceful drops are handled by TTL expiry instead.
func (t *Tracker) MarkOffline(ctx context.Context, userUUID string) error {
	if err := t.cache.Del(ctx, StatusKey(userUUID)); err != nil {
		return err
	}
	if err := t.cache.SRem(ctx, onlineUsersKey, userUUID); err != nil {
		return err
	}
	t.logger.Debug().Str("user", userUUID).Msg("marked offline")
	return nil
}

// IsOnline is a point-in-time read: true iff a non-expired record exists.
func (t *Tracker) IsOnline(ctx context.Context, userUUID string) bool {
	val, err := t.cache.Get(ctx, StatusKey(userUUID))
	if err != nil {
		return false
	}
	return string(val) == string(entity.StatusOnline)
}

// ListOnline resolves the online set to user profiles. Ids whose profile
// lookup fails are dropped: the profile store and the presence cache are
// allowed to disagree transiently.
func (t *Tracker) ListOnline(ctx context.Context) ([]*entity.User, error) {
	ids, err := t.cache.SMembers(ctx, onlineUsersKey)
	if err != nil {
		return nil, err
	}

	users := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		user, err := t.users.GetByUUID(id)
		if err != nil {
			t.logger.Warn().Err(err).Str("user", id).Msg("online user has no profile, skipping")
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// HandleExpiry is the terminal catch-up after a presence key expired: the
// live record is already gone from the cache, so persist the offline status
// and drop the id from the online set.
func (t *Tracker) HandleExpiry(ctx context.Context, userUUID string) error {
	if err := t.cache.SRem(ctx, onlineUsersKey, userUUID); err != nil {
		t.logger.Warn().Err(err).Str("user", userUUID).Msg("could not remove expired user from online set")
	}
	if err := t.users.UpdateStatus(userUUID, entity.StatusOffline); err != nil {
		return err
	}
	t.logger.Info().Str("user", userUUID).Msg("presence expired, user is offline")
	return nil
}
