package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/entity"
)

type mockUserRepo struct {
	mu       sync.Mutex
	users    map[string]*entity.User
	statuses map[string]entity.UserStatus
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	repo := &mockUserRepo{
		users:    make(map[string]*entity.User),
		statuses: make(map[string]entity.UserStatus),
	}
	for _, u := range users {
		repo.users[u.UUID] = u
	}
	return repo
}

func (m *mockUserRepo) Create(user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UUID] = user
	return nil
}

func (m *mockUserRepo) FirstOrCreate(user *entity.User) error { return m.Create(user) }

func (m *mockUserRepo) GetByUUID(uuid string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[uuid]
	if !ok {
		return nil, errors.New("record not found")
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(string) (*entity.User, error) {
	return nil, errors.New("record not found")
}

func (m *mockUserRepo) UpdateStatus(uuid string, status entity.UserStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[uuid] = status
	return nil
}

func (m *mockUserRepo) statusOf(uuid string) entity.UserStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[uuid]
}

func TestMarkOnlineRoundTrip(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	tracker := NewTracker(c, newMockUserRepo(), time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.False(t, tracker.IsOnline(ctx, "u1"))
	require.NoError(t, tracker.MarkOnline(ctx, "u1"))
	require.True(t, tracker.IsOnline(ctx, "u1"))
}

func TestMarkOfflineRemovesRecord(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	repo := newMockUserRepo(&entity.User{UUID: "u1", FirstName: "Ana"})
	tracker := NewTracker(c, repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, "u1"))
	require.NoError(t, tracker.MarkOffline(ctx, "u1"))
	require.False(t, tracker.IsOnline(ctx, "u1"))

	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	require.Empty(t, online)
}

func TestTTLExpiryTransitionsOffline(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	tracker := NewTracker(c, newMockUserRepo(), 40*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, "u1"))
	require.True(t, tracker.IsOnline(ctx, "u1"))

	require.Eventually(t, func() bool {
		return !tracker.IsOnline(ctx, "u1")
	}, time.Second, 10*time.Millisecond)
}

func TestListOnlineDropsUnknownProfiles(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	repo := newMockUserRepo(&entity.User{UUID: "known", FirstName: "Ana"})
	tracker := NewTracker(c, repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, "known"))
	require.NoError(t, tracker.MarkOnline(ctx, "ghost"))

	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	require.Equal(t, "known", online[0].UUID)
}

func TestHandleExpiryPersistsOffline(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	repo := newMockUserRepo(&entity.User{UUID: "u1", FirstName: "Ana"})
	tracker := NewTracker(c, repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, "u1"))
	require.NoError(t, tracker.HandleExpiry(ctx, "u1"))

	require.Equal(t, entity.StatusOffline, repo.statusOf("u1"))
	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	require.Empty(t, online)
}

func TestParseStatusKey(t *testing.T) {
	user, ok := ParseStatusKey(StatusKey("u1"))
	require.True(t, ok)
	require.Equal(t, "u1", user)

	_, ok = ParseStatusKey("message:delivery:a:b")
	require.False(t, ok)
}
