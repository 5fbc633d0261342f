package locator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dyluth/locbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T, fake *testutil.FakeLocator) *Client {
	host, port := fake.HostPort()
	return NewClient(Config{
		Host:           host,
		Port:           port,
		UserName:       "admin",
		Password:       "secret",
		SessionTimeout: 60 * time.Second,
		RequestTimeout: 2 * time.Second,
	}, nil)
}

func TestSetSeed_LoginSetLogout(t *testing.T) {
	fake := testutil.StartFakeLocator(t)
	client := newTestClient(t, fake)

	err := client.SetSeed(context.Background(), Seed{X: 1, Y: 2, Yaw: 0.5, Enforce: true})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "sessionLogin", calls[0].Method)
	assert.Equal(t, "clientLocalizationSetSeed", calls[1].Method)
	assert.Equal(t, "sessionLogout", calls[2].Method)

	// ids are monotonic
	assert.Less(t, calls[0].ID, calls[1].ID)
	assert.Less(t, calls[1].ID, calls[2].ID)

	login := calls[0].Query
	assert.Equal(t, "admin", login["userName"])
	assert.Equal(t, "secret", login["password"])
	assert.Equal(t, map[string]any{"valid": true, "time": float64(60), "resolution": float64(1)}, login["timeout"])

	set := calls[1].Query
	assert.Equal(t, "session-1", set["sessionId"])
	assert.Equal(t, true, set["enforceSeed"])
	assert.Equal(t, false, set["uncertainSeed"])
	assert.Equal(t, map[string]any{"x": float64(1), "y": float64(2), "a": 0.5}, set["seedPose"])

	assert.Equal(t, "session-1", calls[2].Query["sessionId"])
}

func TestSetSeed_LoginFailure(t *testing.T) {
	fake := testutil.StartFakeLocator(t)
	fake.FailLogin(true)
	client := newTestClient(t, fake)

	err := client.SetSeed(context.Background(), Seed{X: 1})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "sessionLogin", rpcErr.Method)
	assert.Empty(t, fake.CallsTo("clientLocalizationSetSeed"))
	assert.Empty(t, fake.CallsTo("sessionLogout"))
}

func TestSetSeed_NonzeroResponseCodeStillLogsOut(t *testing.T) {
	fake := testutil.StartFakeLocator(t)
	fake.SetSeedResponse(3)
	client := newTestClient(t, fake)

	err := client.SetSeed(context.Background(), Seed{X: 1})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "clientLocalizationSetSeed", rpcErr.Method)
	assert.Equal(t, 3, rpcErr.Code)
	assert.Len(t, fake.CallsTo("sessionLogout"), 1)
}

func TestSetSeed_LogoutFailureIsNotASetFailure(t *testing.T) {
	fake := testutil.StartFakeLocator(t)
	fake.LogoutResponse(5)
	core, logs := observer.New(zapcore.WarnLevel)
	host, port := fake.HostPort()
	client := NewClient(Config{Host: host, Port: port, SessionTimeout: time.Minute, RequestTimeout: 2 * time.Second}, zap.New(core).Sugar())

	err := client.SetSeed(context.Background(), Seed{X: 1})
	require.NoError(t, err, "the seed was applied")
	assert.Len(t, fake.CallsTo("sessionLogout"), 1)

	warnings := logs.FilterMessage("Locator logout failed")
	require.Equal(t, 1, warnings.Len())
	assert.Contains(t, warnings.All()[0].ContextMap()["err"], "sessionLogout failed (code 5)")
}

func TestCall_ErrorObject(t *testing.T) {
	fake := testutil.StartFakeLocator(t)
	client := newTestClient(t, fake)

	err := client.callWithCode(context.Background(), "noSuchMethod", sessionQuery{})
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32601, rpcErr.Code)
	assert.Contains(t, rpcErr.Error(), "Method not found")
}

func TestCall_HTTPErrorAndTimeout(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer server.Close()

		client := clientFor(t, server.URL, time.Second)
		_, err := client.SessionLogin(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 401")
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		client := clientFor(t, server.URL, 100*time.Millisecond)
		_, err := client.SessionLogin(context.Background())
		assert.Error(t, err)
	})
}

func clientFor(t *testing.T, rawURL string, timeout time.Duration) *Client {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewClient(Config{Host: u.Hostname(), Port: port, RequestTimeout: timeout}, nil)
}
