package grants

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/metrics"
	"github.com/alan14500171/stock/models"
	"github.com/alan14500171/stock/session"
)

// state machine: empty -> loading -> loaded, or empty -> loading -> loadedDefaults
// when the fetch failed. Both loaded states are terminal for the session; Reset
// returns to empty.
type state int

const (
	stateEmpty state = iota
	stateLoading
	stateLoaded
	stateLoadedDefaults
)

// FetchFunc retrieves the profile and grants of the current session,
// normally transport.Client.UserInfo.
type FetchFunc func(ctx context.Context) (*models.UserInfo, error)

// Cache memoizes the grant set of the current session: one network round-trip
// per session lifetime, synchronous membership checks afterwards.
type Cache struct {
	mu       sync.Mutex
	state    state
	gen      uint64
	inflight chan struct{}

	permissions map[string]struct{}
	roles       map[string]struct{}
	menus       []models.Menu

	sessions *session.Store
	fetch    FetchFunc
	log      zerolog.Logger
}

func NewCache(logger zerolog.Logger, sessions *session.Store, fetch FetchFunc) *Cache {
	return &Cache{
		permissions: map[string]struct{}{},
		roles:       map[string]struct{}{},
		sessions:    sessions,
		fetch:       fetch,
		log:         logger.With().Str("component", "permission_cache").Logger(),
	}
}

// Load populates the grant set. No-op once loaded. Safe to call concurrently:
// a caller that observes an in-flight load awaits it instead of issuing a
// second fetch. A failed fetch degrades to an empty grant set so navigation is
// never blocked indefinitely; the only returned error is context cancellation.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case stateLoaded, stateLoadedDefaults:
		c.mu.Unlock()
		return nil

	case stateLoading:
		done := c.inflight
		c.mu.Unlock()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "interrupted while awaiting permission load")
		}
	}

	// Administrative sessions get the full grant list locally.
	if c.sessions.IsAdmin() {
		c.setGrants(adminPermissions, adminRoles, nil)
		c.state = stateLoaded
		c.mu.Unlock()
		c.log.Debug().Msg("administrative session, full grant list assigned")
		return nil
	}

	c.state = stateLoading
	c.inflight = make(chan struct{})
	done := c.inflight
	gen := c.gen
	c.mu.Unlock()

	info, err := c.fetch(ctx)

	c.mu.Lock()
	defer func() {
		close(done)
		c.mu.Unlock()
	}()

	metrics.Inc(config.PermissionLoads)

	if c.gen != gen {
		// Reset raced the fetch; the session changed, discard the result.
		return nil
	}

	if err != nil {
		c.log.Warn().Err(err).Msg("permission load failed, falling back to empty grant set")
		c.setGrants(nil, nil, nil)
		c.state = stateLoadedDefaults
		return nil
	}

	c.setGrants(info.Permissions, info.Roles, info.Menus)
	c.state = stateLoaded
	c.log.Debug().
		Int("permissions", len(c.permissions)).
		Int("roles", len(c.roles)).
		Msg("grants loaded")
	return nil
}

// HasPermission reports whether the current session holds the permission code.
// False for empty input or an unloaded cache, never an error.
func (c *Cache) HasPermission(code string) bool {
	if code == "" {
		return false
	}
	if c.sessions.IsAdmin() {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.permissions[code]
	return ok
}

// HasRole reports whether the current session holds the role name.
func (c *Cache) HasRole(name string) bool {
	if name == "" {
		return false
	}
	if c.sessions.IsAdmin() {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.roles[name]
	return ok
}

// Loaded reports whether the cache reached a terminal state, degraded or not.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateLoaded || c.state == stateLoadedDefaults
}

// Degraded reports whether the last load failed and left the default
// (empty) grant set in place.
func (c *Cache) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateLoadedDefaults
}

// Permissions returns the granted permission codes.
func (c *Cache) Permissions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return setToList(c.permissions)
}

// Roles returns the granted role names.
func (c *Cache) Roles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return setToList(c.roles)
}

// Menus returns the menu entries delivered with the grants.
func (c *Cache) Menus() []models.Menu {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Menu(nil), c.menus...)
}

// Reset clears the cache back to empty. Must run on logout so grants cannot
// leak into a later session under a different identity.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.state = stateEmpty
	c.permissions = map[string]struct{}{}
	c.roles = map[string]struct{}{}
	c.menus = nil
}

func (c *Cache) setGrants(permissions, roles []string, menus []models.Menu) {
	c.permissions = map[string]struct{}{}
	for _, code := range permissions {
		c.permissions[code] = struct{}{}
	}

	c.roles = map[string]struct{}{}
	for _, name := range roles {
		c.roles[name] = struct{}{}
	}

	c.menus = menus
}

func setToList(set map[string]struct{}) []string {
	list := make([]string, 0, len(set))
	for item := range set {
		list = append(list, item)
	}
	return list
}
