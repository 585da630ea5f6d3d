package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/models"
	"github.com/alan14500171/stock/session"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type timeoutError struct{}

func (timeoutError) Error() string { return "context deadline exceeded" }

func (timeoutError) Timeout() bool { return true }

func newTestSessions(t *testing.T, token string) *session.Store {
	store := session.NewStore(zerolog.Nop(), session.NewMemoryStorage())
	if token != "" {
		require.NoError(t, store.SetCredentials(token, models.User{ID: 1, Username: "trader"}))
	}
	return store
}

func testCfg(baseURL string) config.BackOfficeCfg {
	return config.BackOfficeCfg{
		BaseURL:        baseURL,
		RequestTimeout: 2,
		RetryBudget:    3,
		RetryDelay:     1, // ms, keep the tests fast
	}
}

func TestBearerAndCacheBuster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("_t"), "GET requests must carry a cache buster")

		w.Write([]byte(`{"success":true,"data":{"items":[]}}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), testCfg(server.URL), newTestSessions(t, "tok-1"))

	var out struct {
		Items []string `json:"items"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/api/stock/list", nil, &out))
}

func TestNoBearerWithoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), testCfg(server.URL), newTestSessions(t, ""))
	require.NoError(t, client.GetJSON(context.Background(), "/api/ping", nil, nil))
}

func TestEnvelope401ClearsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// application-level expiry signal inside an HTTP 200
		w.Write([]byte(`{"success":false,"code":401,"message":"session expired"}`))
	}))
	defer server.Close()

	sessions := newTestSessions(t, "tok-1")

	var hookFired int64
	client := NewClient(zerolog.Nop(), testCfg(server.URL), sessions,
		WithSessionExpiredHook(func() { atomic.AddInt64(&hookFired, 1) }))

	err := client.GetJSON(context.Background(), "/api/stock/list", nil, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
	assert.False(t, sessions.Current().Authenticated)
	assert.EqualValues(t, 1, atomic.LoadInt64(&hookFired))
}

func TestHTTP401ClearsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := newTestSessions(t, "tok-1")
	client := NewClient(zerolog.Nop(), testCfg(server.URL), sessions)

	err := client.GetJSON(context.Background(), "/api/stock/list", nil, nil)
	assert.True(t, IsUnauthenticated(err))
	assert.False(t, sessions.Current().Authenticated)
}

func TestForbiddenKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"no permission"}`, http.StatusForbidden)
	}))
	defer server.Close()

	sessions := newTestSessions(t, "tok-1")
	client := NewClient(zerolog.Nop(), testCfg(server.URL), sessions)

	err := client.GetJSON(context.Background(), "/api/system/user/list", nil, nil)
	assert.True(t, IsForbidden(err))
	assert.True(t, sessions.Current().Authenticated, "403 must not touch the session")
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), testCfg(server.URL), newTestSessions(t, "tok-1"))

	err := client.GetJSON(context.Background(), "/api/stock/list", nil, nil)
	assert.True(t, IsServerError(err))
}

func TestNetworkFailureRetriesExhaustBudget(t *testing.T) {
	var attempts int64
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt64(&attempts, 1)
		return nil, errors.New("connection refused")
	})

	client := NewClient(zerolog.Nop(), testCfg("http://backoffice.test"), newTestSessions(t, "tok-1"),
		WithTransport(rt))

	err := client.GetJSON(context.Background(), "/api/stock/list", nil, nil)
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.EqualValues(t, 4, atomic.LoadInt64(&attempts), "1 original attempt + 3 retries")
}

func TestPostNotRetried(t *testing.T) {
	var attempts int64
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt64(&attempts, 1)
		return nil, errors.New("connection refused")
	})

	client := NewClient(zerolog.Nop(), testCfg("http://backoffice.test"), newTestSessions(t, "tok-1"),
		WithTransport(rt))

	err := client.PostJSON(context.Background(), "/api/transaction/add", map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.EqualValues(t, 1, atomic.LoadInt64(&attempts), "non-idempotent calls are never retried")
}

func TestTimeoutNotRetried(t *testing.T) {
	var attempts int64
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt64(&attempts, 1)
		return nil, timeoutError{}
	})

	client := NewClient(zerolog.Nop(), testCfg("http://backoffice.test"), newTestSessions(t, "tok-1"),
		WithTransport(rt))

	err := client.GetJSON(context.Background(), "/api/stock/list", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsNetworkError(err))
	assert.EqualValues(t, 1, atomic.LoadInt64(&attempts))
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"success":true,"message":"ok","token":"tok-9","user":{"id":3,"username":"trader"}}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), testCfg(server.URL), newTestSessions(t, ""))

	resp, err := client.Login(context.Background(), "trader", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-9", resp.Token)
	assert.Equal(t, "trader", resp.User.Username)
}

func TestUserInfoNormalizesRecordShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{
			"id":3,"username":"trader",
			"permissions":[{"code":"stock:list:view"},{"code":"profit:stats:view"}],
			"roles":[{"name":"operator"}]}}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), testCfg(server.URL), newTestSessions(t, "tok-1"))

	info, err := client.UserInfo(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"stock:list:view", "profit:stats:view"}, []string(info.Permissions))
	assert.ElementsMatch(t, []string{"operator"}, []string(info.Roles))
}
