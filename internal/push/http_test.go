package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPProviderPush(t *testing.T) {
	var got httpPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret")
	require.NoError(t, p.Push(context.Background(), "tok-1", "Ana", "hi"))

	require.Equal(t, "key=secret", auth)
	require.Equal(t, "tok-1", got.To)
	require.Equal(t, "Ana", got.Notification.Title)
	require.Equal(t, "hi", got.Notification.Body)
}

func TestHTTPProviderRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "bad")
	require.Error(t, p.Push(context.Background(), "tok-1", "Ana", "hi"))
}

func TestDiscardNeverFails(t *testing.T) {
	require.NoError(t, Discard{}.Push(context.Background(), "tok", "t", "b"))
}
