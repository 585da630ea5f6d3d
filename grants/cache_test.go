package grants

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan14500171/stock/models"
	"github.com/alan14500171/stock/session"
)

func newTestSessions(t *testing.T, username string) *session.Store {
	store := session.NewStore(zerolog.Nop(), session.NewMemoryStorage())
	if username != "" {
		require.NoError(t, store.SetCredentials("tok", models.User{ID: 1, Username: username}))
	}
	return store
}

// countingFetch returns a FetchFunc that counts invocations.
func countingFetch(calls *int64, info *models.UserInfo, err error) FetchFunc {
	return func(context.Context) (*models.UserInfo, error) {
		atomic.AddInt64(calls, 1)
		return info, err
	}
}

func TestAdminLoadSkipsNetwork(t *testing.T) {
	var calls int64
	cache := NewCache(zerolog.Nop(), newTestSessions(t, "alan"),
		countingFetch(&calls, nil, errors.New("must not be called")))

	require.NoError(t, cache.Load(context.Background()))

	assert.EqualValues(t, 0, atomic.LoadInt64(&calls))
	assert.True(t, cache.Loaded())
	assert.True(t, cache.HasPermission("system:user:view"))
	assert.True(t, cache.HasPermission("anything:at:all"))
	assert.True(t, cache.HasRole("whatever"))
	assert.False(t, cache.HasPermission(""))
	assert.False(t, cache.HasRole(""))
}

func TestLoadPopulatesGrants(t *testing.T) {
	var calls int64
	info := &models.UserInfo{
		Permissions: models.PermissionList{"stock:list:view", "system:user:view"},
		Roles:       models.RoleList{"operator"},
	}
	cache := NewCache(zerolog.Nop(), newTestSessions(t, "trader"), countingFetch(&calls, info, nil))

	require.NoError(t, cache.Load(context.Background()))

	assert.True(t, cache.HasPermission("system:user:view"))
	assert.True(t, cache.HasRole("operator"))
	assert.False(t, cache.HasPermission("system:user:delete"))
	assert.False(t, cache.HasRole("admin"))

	// a second load is a no-op
	require.NoError(t, cache.Load(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestLoadSingleFlight(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	fetch := func(context.Context) (*models.UserInfo, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return &models.UserInfo{Permissions: models.PermissionList{"stock:list:view"}}, nil
	}

	cache := NewCache(zerolog.Nop(), newTestSessions(t, "trader"), fetch)

	const concurrency = 8
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, cache.Load(context.Background()))
		}()
	}

	// let every goroutine reach the cache before the fetch resolves
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
	assert.True(t, cache.HasPermission("stock:list:view"))
}

func TestLoadFailureDegrades(t *testing.T) {
	var calls int64
	cache := NewCache(zerolog.Nop(), newTestSessions(t, "trader"),
		countingFetch(&calls, nil, errors.New("back office unreachable")))

	// the failure is swallowed: navigation must never block on it
	require.NoError(t, cache.Load(context.Background()))

	assert.True(t, cache.Loaded())
	assert.True(t, cache.Degraded())
	assert.False(t, cache.HasPermission("stock:list:view"))
	assert.Empty(t, cache.Permissions())
}

func TestResetRevokesGrants(t *testing.T) {
	var calls int64
	info := &models.UserInfo{Permissions: models.PermissionList{"stock:list:view"}}
	cache := NewCache(zerolog.Nop(), newTestSessions(t, "trader"), countingFetch(&calls, info, nil))

	require.NoError(t, cache.Load(context.Background()))
	require.True(t, cache.HasPermission("stock:list:view"))

	cache.Reset()
	assert.False(t, cache.Loaded())
	assert.False(t, cache.HasPermission("stock:list:view"))

	require.NoError(t, cache.Load(context.Background()))
	assert.True(t, cache.HasPermission("stock:list:view"))
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestUnloadedCacheDeniesEverything(t *testing.T) {
	cache := NewCache(zerolog.Nop(), newTestSessions(t, "trader"), nil)

	assert.False(t, cache.HasPermission("stock:list:view"))
	assert.False(t, cache.HasRole("operator"))
	assert.False(t, cache.Loaded())
}

func TestResetDuringLoadDiscardsResult(t *testing.T) {
	release := make(chan struct{})
	fetch := func(context.Context) (*models.UserInfo, error) {
		<-release
		return &models.UserInfo{Permissions: models.PermissionList{"stock:list:view"}}, nil
	}
	cache := NewCache(zerolog.Nop(), newTestSessions(t, "trader"), fetch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cache.Load(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	cache.Reset() // the session changed under the in-flight load
	close(release)
	<-done

	assert.False(t, cache.Loaded())
	assert.False(t, cache.HasPermission("stock:list:view"))
}
