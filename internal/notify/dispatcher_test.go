package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/cache"
	"github.com/courierchat/courier/internal/entity"
	"github.com/courierchat/courier/internal/presence"
	"github.com/courierchat/courier/internal/transport"
)

type recordedPublish struct {
	destination string
	payload     []byte
}

type mockPublisher struct {
	mu        sync.Mutex
	published []recordedPublish
}

func (m *mockPublisher) Publish(_ context.Context, destination string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, recordedPublish{destination, payload})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) all() []recordedPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedPublish(nil), m.published...)
}

type recordedPush struct {
	token, title, body string
}

type mockPushProvider struct {
	mu     sync.Mutex
	pushes []recordedPush
}

func (m *mockPushProvider) Push(_ context.Context, token, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, recordedPush{token, title, body})
	return nil
}

func (m *mockPushProvider) all() []recordedPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedPush(nil), m.pushes...)
}

type mockDeviceRepo struct {
	tokens map[string][]string
	errFor map[string]error
}

func (m *mockDeviceRepo) Save(*entity.UserDevice) error { return nil }
func (m *mockDeviceRepo) Remove(string) error           { return nil }

func (m *mockDeviceRepo) TokensByUser(userUUID string) ([]string, error) {
	if err := m.errFor[userUUID]; err != nil {
		return nil, err
	}
	return m.tokens[userUUID], nil
}

type mockUserRepo struct{}

func (mockUserRepo) Create(*entity.User) error        { return nil }
func (mockUserRepo) FirstOrCreate(*entity.User) error { return nil }
func (mockUserRepo) GetByUUID(uuid string) (*entity.User, error) {
	return &entity.User{UUID: uuid}, nil
}
func (mockUserRepo) GetByEmail(string) (*entity.User, error) {
	return nil, errors.New("not found")
}
func (mockUserRepo) UpdateStatus(string, entity.UserStatus) error { return nil }

func newTestDispatcher(t *testing.T, devices *mockDeviceRepo) (*Dispatcher, *presence.Tracker, *mockPublisher, *mockPushProvider) {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	presences := presence.NewTracker(c, mockUserRepo{}, time.Minute, zerolog.Nop())
	publisher := &mockPublisher{}
	provider := &mockPushProvider{}
	d := NewDispatcher(presences, publisher, provider, devices, zerolog.Nop())
	return d, presences, publisher, provider
}

func TestNotifyOnlineRecipientGetsLiveNotification(t *testing.T) {
	devices := &mockDeviceRepo{tokens: map[string][]string{"b": {"tok-b"}}}
	d, presences, publisher, provider := newTestDispatcher(t, devices)
	ctx := context.Background()

	require.NoError(t, presences.MarkOnline(ctx, "b"))

	sender := &entity.User{UUID: "a", FirstName: "Ana"}
	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	d.Notify(ctx, sender, msg, []string{"b"}, false)

	published := publisher.all()
	require.Len(t, published, 1)
	require.Equal(t, transport.NotificationDestination("b"), published[0].destination)

	var n Notification
	require.NoError(t, json.Unmarshal(published[0].payload, &n))
	require.Equal(t, "a", n.SenderUUID)
	require.Equal(t, "Ana", n.SenderName)
	require.Equal(t, "hi", n.Content)

	require.Empty(t, provider.all())
}

func TestNotifyOfflineRecipientGetsPushPerToken(t *testing.T) {
	devices := &mockDeviceRepo{tokens: map[string][]string{"b": {"tok-1", "tok-2"}}}
	d, _, publisher, provider := newTestDispatcher(t, devices)
	ctx := context.Background()

	sender := &entity.User{UUID: "a", FirstName: "Ana"}
	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	d.Notify(ctx, sender, msg, []string{"b"}, false)

	require.Empty(t, publisher.all())

	pushes := provider.all()
	require.Len(t, pushes, 2)
	require.Equal(t, "tok-1", pushes[0].token)
	require.Equal(t, "Ana", pushes[0].title)
	require.Equal(t, "hi", pushes[0].body)
}

func TestNotifySkipsSender(t *testing.T) {
	devices := &mockDeviceRepo{tokens: map[string][]string{"a": {"tok-a"}}}
	d, _, publisher, provider := newTestDispatcher(t, devices)

	sender := &entity.User{UUID: "a", FirstName: "Ana"}
	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	d.Notify(context.Background(), sender, msg, []string{"a"}, false)

	require.Empty(t, publisher.all())
	require.Empty(t, provider.all())
}

func TestNotifyForcedBypassesPresence(t *testing.T) {
	devices := &mockDeviceRepo{tokens: map[string][]string{"b": {"tok-b"}}}
	d, presences, publisher, provider := newTestDispatcher(t, devices)
	ctx := context.Background()

	// Online, but the caller knows the live path already failed.
	require.NoError(t, presences.MarkOnline(ctx, "b"))

	sender := &entity.User{UUID: "a", FirstName: "Ana"}
	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	d.Notify(ctx, sender, msg, []string{"b"}, true)

	require.Empty(t, publisher.all())
	require.Len(t, provider.all(), 1)
}

func TestNotifyTokenLookupFailureDoesNotAbortOthers(t *testing.T) {
	devices := &mockDeviceRepo{
		tokens: map[string][]string{"c": {"tok-c"}},
		errFor: map[string]error{"b": errors.New("device store down")},
	}
	d, _, _, provider := newTestDispatcher(t, devices)

	sender := &entity.User{UUID: "a", FirstName: "Ana"}
	msg := &entity.Message{UUID: "m1", Content: "hi", SenderUUID: "a"}
	d.Notify(context.Background(), sender, msg, []string{"b", "c"}, false)

	pushes := provider.all()
	require.Len(t, pushes, 1)
	require.Equal(t, "tok-c", pushes[0].token)
}
