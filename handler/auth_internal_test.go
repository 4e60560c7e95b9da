package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/eden-shim/auth"
	"github.com/stevemurr/eden-shim/client"
	"github.com/stevemurr/eden-shim/config"
	"github.com/stevemurr/eden-shim/store"
)

func TestEventStreamClosesWhenClientFallsBehind(t *testing.T) {
	old := eventBuffer
	eventBuffer = 0
	t.Cleanup(func() { eventBuffer = old })

	c, err := client.Open(&config.Config{}, client.WithStore(store.NewMemoryStore()))
	require.NoError(t, err)
	ts := httptest.NewServer(New(c, nil))
	defer ts.Close()

	// with no room for even the replay the stream ends instead of
	// silently skipping it
	resp, err := ts.Client().Get(ts.URL + "/auth/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "data:")

	m := c.Auth().(*auth.Manager)
	assert.Eventually(t, func() bool { return m.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
