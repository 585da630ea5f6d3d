package guard

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/grants"
	"github.com/alan14500171/stock/metrics"
	"github.com/alan14500171/stock/session"
)

type Action int

const (
	ActionAllow Action = iota
	ActionRedirect
)

// Decision is the terminal outcome of a navigation attempt: either the target
// view is entered, or the transition is redirected elsewhere.
type Decision struct {
	Action   Action
	Route    Route
	Location string
	Query    url.Values
}

func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// Target returns the location the navigation ends up at.
func (d Decision) Target() string {
	if d.Action == ActionAllow {
		return d.Route.Path
	}
	if len(d.Query) > 0 {
		return d.Location + "?" + d.Query.Encode()
	}
	return d.Location
}

// Guard gates every route transition on session and grant state. It holds only
// read access to both stores; awaiting the permission load is the one write-ish
// thing it triggers, and that is owned by the cache itself.
type Guard struct {
	mu       sync.Mutex
	sessions *session.Store
	grants   *grants.Cache
	table    Table
	log      zerolog.Logger
}

func New(logger zerolog.Logger, sessions *session.Store, cache *grants.Cache, table Table) *Guard {
	return &Guard{
		sessions: sessions,
		grants:   cache,
		table:    table,
		log:      logger.With().Str("component", "navigation_guard").Logger(),
	}
}

func (g *Guard) Table() Table {
	return g.table
}

// Resolve evaluates a route transition. Transitions are processed one at a
// time: a second transition triggered while a prior one awaits the permission
// load queues up and then observes the already-resolved load.
func (g *Guard) Resolve(ctx context.Context, path string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	route := g.table.Match(path)
	logger := g.log.With().Str("path", path).Str("route", route.Name).Logger()

	if !route.RequiresAuth {
		return g.allow(logger, route)
	}

	sess := g.sessions.Current()
	if !sess.Authenticated {
		logger.Debug().Msg("unauthenticated, redirecting to login")
		return g.redirect(route, PathLogin, url.Values{RedirectParam: {path}})
	}

	// Administrative identities bypass grant evaluation for the whole
	// system-management subtree.
	if g.sessions.IsAdmin() && strings.HasPrefix(path, AdminPathPrefix) {
		logger.Debug().Msg("administrative bypass")
		return g.allow(logger, route)
	}

	if !g.grants.Loaded() {
		if err := g.grants.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("permission load interrupted")
			if route.Permission == "" {
				return g.allow(logger, route)
			}
			return g.redirect(route, PathHome, nil)
		}
	}

	if route.Permission != "" && !g.grants.HasPermission(route.Permission) {
		logger.Warn().Str("permission", route.Permission).Msg("missing required grant")
		return g.redirect(route, PathHome, nil)
	}

	return g.allow(logger, route)
}

func (g *Guard) allow(logger zerolog.Logger, route Route) Decision {
	metrics.Inc(config.GuardAllowed)
	logger.Debug().Msg("navigation allowed")
	return Decision{Action: ActionAllow, Route: route}
}

func (g *Guard) redirect(route Route, location string, query url.Values) Decision {
	metrics.Inc(config.GuardRedirected)
	return Decision{
		Action:   ActionRedirect,
		Route:    route,
		Location: location,
		Query:    query,
	}
}
