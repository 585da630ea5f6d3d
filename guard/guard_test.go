package guard

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan14500171/stock/grants"
	"github.com/alan14500171/stock/models"
	"github.com/alan14500171/stock/session"
)

type fixture struct {
	sessions *session.Store
	calls    int64
	guard    *Guard
}

func newFixture(t *testing.T, username string, info *models.UserInfo, fetchErr error) *fixture {
	f := &fixture{
		sessions: session.NewStore(zerolog.Nop(), session.NewMemoryStorage()),
	}
	if username != "" {
		require.NoError(t, f.sessions.SetCredentials("tok", models.User{ID: 1, Username: username}))
	}

	fetch := func(ctx context.Context) (*models.UserInfo, error) {
		atomic.AddInt64(&f.calls, 1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		if info == nil {
			return &models.UserInfo{}, nil
		}
		return info, nil
	}
	cache := grants.NewCache(zerolog.Nop(), f.sessions, fetch)
	f.guard = New(zerolog.Nop(), f.sessions, cache, DefaultRoutes())
	return f
}

func TestPublicRoutesAlwaysAllowed(t *testing.T) {
	f := newFixture(t, "", nil, errors.New("must not fetch"))

	for _, path := range []string{"/", "/login", "/no/such/route"} {
		decision := f.guard.Resolve(context.Background(), path)
		assert.True(t, decision.Allowed(), "path %q", path)
	}
	assert.EqualValues(t, 0, atomic.LoadInt64(&f.calls))
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	f := newFixture(t, "", nil, errors.New("must not fetch"))

	decision := f.guard.Resolve(context.Background(), "/transaction/list")
	require.False(t, decision.Allowed())
	assert.Equal(t, PathLogin, decision.Location)
	assert.Equal(t, "/transaction/list", decision.Query.Get(RedirectParam))
	assert.Equal(t, "/login?redirect=%2Ftransaction%2Flist", decision.Target())

	// the permission load must not even be attempted
	assert.EqualValues(t, 0, atomic.LoadInt64(&f.calls))
}

func TestAdminBypassesSystemRoutes(t *testing.T) {
	f := newFixture(t, "alan", nil, errors.New("must not fetch"))

	for _, path := range []string{"/system/user", "/system/role", "/system/holder"} {
		decision := f.guard.Resolve(context.Background(), path)
		assert.True(t, decision.Allowed(), "path %q", path)
	}
	assert.EqualValues(t, 0, atomic.LoadInt64(&f.calls), "admin bypass must not load grants")
}

func TestGrantedNavigationAllowed(t *testing.T) {
	info := &models.UserInfo{Permissions: models.PermissionList{"transaction:records:view"}}
	f := newFixture(t, "trader", info, nil)

	decision := f.guard.Resolve(context.Background(), "/transaction/list")
	assert.True(t, decision.Allowed())
	assert.Equal(t, "TransactionList", decision.Route.Name)
	assert.Equal(t, "/transaction/list", decision.Target())
}

func TestMissingGrantRedirectsHome(t *testing.T) {
	info := &models.UserInfo{Permissions: models.PermissionList{"stock:list:view"}}
	f := newFixture(t, "trader", info, nil)

	decision := f.guard.Resolve(context.Background(), "/system/user")
	require.False(t, decision.Allowed())
	assert.Equal(t, PathHome, decision.Target())
}

func TestLoadHappensOnceAcrossResolves(t *testing.T) {
	info := &models.UserInfo{Permissions: models.PermissionList{
		"transaction:records:view", "stock:list:view",
	}}
	f := newFixture(t, "trader", info, nil)

	assert.True(t, f.guard.Resolve(context.Background(), "/transaction/list").Allowed())
	assert.True(t, f.guard.Resolve(context.Background(), "/stock").Allowed())
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.calls))
}

func TestDegradedLoadDeniesGatedRoutes(t *testing.T) {
	f := newFixture(t, "trader", nil, errors.New("back office unreachable"))

	// a fetch failure degrades to empty grants rather than an error, so
	// gated routes are denied and ungated ones still work
	decision := f.guard.Resolve(context.Background(), "/stock")
	require.False(t, decision.Allowed())
	assert.Equal(t, PathHome, decision.Target())

	assert.True(t, f.guard.Resolve(context.Background(), "/home").Allowed())
}

func TestInterruptedLoadFailsOpenForUngatedRoutes(t *testing.T) {
	f := newFixture(t, "trader", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// /home requires auth but no specific permission
	assert.True(t, f.guard.Resolve(ctx, "/home").Allowed())

	// a gated route under the same degraded cache goes home instead
	decision := f.guard.Resolve(ctx, "/stock")
	require.False(t, decision.Allowed())
	assert.Equal(t, PathHome, decision.Target())
}

func TestPatternRouteMatching(t *testing.T) {
	info := &models.UserInfo{Permissions: models.PermissionList{"transaction:records:edit"}}
	f := newFixture(t, "trader", info, nil)

	decision := f.guard.Resolve(context.Background(), "/transactions/edit/42")
	assert.True(t, decision.Allowed())
	assert.Equal(t, "TransactionEdit", decision.Route.Name)
}

func TestTableMatch(t *testing.T) {
	table := DefaultRoutes()

	assert.Equal(t, "Home", table.Match("/home").Name)
	assert.Equal(t, "TransactionEdit", table.Match("/transactions/edit/7").Name)

	missing := table.Match("/transactions/edit/")
	assert.Equal(t, "NotFound", missing.Name)
	assert.False(t, missing.RequiresAuth)
}
