package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/grants"
	"github.com/alan14500171/stock/guard"
	"github.com/alan14500171/stock/metrics"
	"github.com/alan14500171/stock/models"
	"github.com/alan14500171/stock/session"
	"github.com/alan14500171/stock/transport"
)

// App is the explicitly constructed client context: it owns the session store,
// permission cache, transport client and navigation guard, and wires them
// together so none of them reaches for ambient global state.
type App struct {
	cfg     config.Cfg
	log     zerolog.Logger
	storage session.Storage

	Sessions *session.Store
	Grants   *grants.Cache
	Client   *transport.Client
	Guard    *guard.Guard
}

func New(logger zerolog.Logger, cfg config.Cfg) (*App, error) {
	storage, err := session.NewStorage(cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session storage")
	}

	a := &App{
		cfg:     cfg,
		log:     logger,
		storage: storage,
	}

	a.Sessions = session.NewStore(logger, storage)
	a.Client = transport.NewClient(logger, cfg.BackOffice, a.Sessions,
		transport.WithSessionExpiredHook(a.onSessionExpired))
	a.Grants = grants.NewCache(logger, a.Sessions, func(ctx context.Context) (*models.UserInfo, error) {
		return a.Client.UserInfo(ctx)
	})
	a.Guard = guard.New(logger, a.Sessions, a.Grants, guard.DefaultRoutes())

	return a, nil
}

// Login authenticates against the back office and persists the credentials.
func (a *App) Login(ctx context.Context, username, password string) (*models.User, error) {
	resp, err := a.Client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if err := a.Sessions.SetCredentials(resp.Token, resp.User); err != nil {
		return nil, errors.Wrap(err, "failed to persist session")
	}

	// grants of a previously logged-in identity must not leak into this one
	a.Grants.Reset()

	return &resp.User, nil
}

// Logout drops the server-side session and wipes all local session state.
// Local state is cleared even when the back office is unreachable.
func (a *App) Logout(ctx context.Context) {
	if err := a.Client.Logout(ctx); err != nil {
		a.log.Warn().Err(err).Msg("back office logout failed, clearing local session anyway")
	}

	a.Sessions.Clear()
	a.Grants.Reset()
}

// Open evaluates a navigation to the given path.
func (a *App) Open(ctx context.Context, path string) guard.Decision {
	return a.Guard.Resolve(ctx, path)
}

func (a *App) Close() {
	if a.cfg.Monitoring.ReportFile {
		if err := metrics.WriteReport(a.cfg.Monitoring.ReportPath, false); err != nil {
			a.log.Warn().Err(err).Msg("failed to write metrics report")
		}
	}

	if err := a.storage.CloseConnection(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close session storage")
	}
}

// onSessionExpired runs after the transport client observed an authentication
// failure and cleared the credentials. The permission cache is reset here; the
// next navigation observes the empty session and lands on the login view.
func (a *App) onSessionExpired() {
	a.Grants.Reset()
	a.log.Warn().Str("location", guard.PathLogin).Msg("session expired, redirecting to login")
}
