package client_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stevemurr/eden-shim/auth"
	"github.com/stevemurr/eden-shim/client"
	"github.com/stevemurr/eden-shim/collection"
	"github.com/stevemurr/eden-shim/config"
	"github.com/stevemurr/eden-shim/store"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Backend: "json", DataDir: filepath.Join(t.TempDir(), "data")},
	}
}

func configured(t *testing.T) *config.Config {
	cfg := localConfig(t)
	cfg.Backend = config.BackendConfig{URL: "https://backend.example", AnonKey: "key"}
	return cfg
}

// remote stands in for a real backend client; it reuses the shim's own
// components so calls are observable.
func remote() *client.Backend {
	blobs := store.NewMemoryStore()
	return &client.Backend{Auth: auth.New(blobs), Exec: collection.New(blobs)}
}

func TestUnconfiguredUsesLocalShim(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	called := false
	c, err := client.Open(localConfig(t),
		client.WithLogger(zap.New(core)),
		client.WithRemote(func(url, key string) (*client.Backend, error) {
			called = true
			return remote(), nil
		}))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, client.ModeLocal, c.Mode())
	assert.False(t, called)
	assert.Equal(t, 1, logs.FilterMessage("running in offline demo mode").Len())
}

func TestConfiguredUsesRemote(t *testing.T) {
	var gotURL, gotKey string
	c, err := client.Open(configured(t), client.WithRemote(func(url, key string) (*client.Backend, error) {
		gotURL, gotKey = url, key
		return remote(), nil
	}))
	require.NoError(t, err)
	assert.Equal(t, client.ModeRemote, c.Mode())
	assert.Equal(t, "https://backend.example", gotURL)
	assert.Equal(t, "key", gotKey)
	assert.NoError(t, c.Close())
}

func TestRemoteFailureFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		dialer client.Dialer
	}{
		{"no dialer", nil},
		{"error", func(string, string) (*client.Backend, error) { return nil, errors.New("bad url") }},
		{"panic", func(string, string) (*client.Backend, error) { panic("boom") }},
		{"incomplete", func(string, string) (*client.Backend, error) { return &client.Backend{}, nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			c, err := client.Open(configured(t), client.WithRemote(tc.dialer), client.WithLogger(zap.New(core)))
			require.NoError(t, err)
			defer c.Close()
			assert.Equal(t, client.ModeLocal, c.Mode())
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestLocalRoundTrip(t *testing.T) {
	c, err := client.Open(localConfig(t), client.WithStore(store.NewMemoryStore()))
	require.NoError(t, err)
	ctx := context.Background()

	_, session, err := c.Auth().SignIn(ctx, "a@x.com", "p")
	require.NoError(t, err)

	_, err = c.From("profiles").Eq("id", session.User.ID).Single(ctx)
	require.ErrorIs(t, err, collection.ErrNotFound)

	_, err = c.From("profiles").Insert(collection.Record{"id": session.User.ID, "email": "a@x.com"}).Execute(ctx)
	require.NoError(t, err)

	row, err := c.From("profiles").Select().Eq("id", session.User.ID).Single(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", row["email"])

	names, err := c.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"profiles"}, names)
}

func TestUnknownStoreBackend(t *testing.T) {
	cfg := localConfig(t)
	cfg.Store.Backend = "redis"
	_, err := client.Open(cfg)
	assert.Error(t, err)
}
