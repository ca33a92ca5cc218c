package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/entity"
)

func TestTrackAndSnapshot(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	tracker := NewTracker(c, time.Minute, zerolog.Nop())
	ctx := context.Background()

	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a", RoomUUID: "r1"}
	require.NoError(t, tracker.Track(ctx, msg, "b"))

	snap, err := tracker.Snapshot(ctx, "m1", "b")
	require.NoError(t, err)
	require.Equal(t, "m1", snap.UUID)
	require.Equal(t, "hi", snap.Content)
	require.Equal(t, "a", snap.SenderUUID)
}

func TestAcknowledgeClearsMarkerAndSnapshot(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	tracker := NewTracker(c, time.Minute, zerolog.Nop())
	ctx := context.Background()

	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	require.NoError(t, tracker.Track(ctx, msg, "b"))
	require.NoError(t, tracker.Acknowledge(ctx, "m1", "b"))

	_, err := c.Get(ctx, Key("m1", "b"))
	require.ErrorIs(t, err, cache.ErrMiss)

	_, err = tracker.Snapshot(ctx, "m1", "b")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestSnapshotOutlivesMarker(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	tracker := NewTracker(c, 40*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	require.NoError(t, tracker.Track(ctx, msg, "b"))

	// Wait out the marker TTL but stay inside the snapshot window.
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, Key("m1", "b"))
		return err != nil
	}, time.Second, 5*time.Millisecond)

	snap, err := tracker.Snapshot(ctx, "m1", "b")
	require.NoError(t, err)
	require.Equal(t, "m1", snap.UUID)
}

func TestParseKey(t *testing.T) {
	messageUUID, recipientUUID, ok := ParseKey(Key("m1", "b"))
	require.True(t, ok)
	require.Equal(t, "m1", messageUUID)
	require.Equal(t, "b", recipientUUID)

	_, _, ok = ParseKey("user:status:u1")
	require.False(t, ok)

	_, _, ok = ParseKey(KeyPrefix + "missing-recipient")
	require.False(t, ok)
}
