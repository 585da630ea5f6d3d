package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/lancer-kit/armory/api/render"
	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/metrics"
	"github.com/alan14500171/stock/models"
)

// Stub-side counters, exposed as gauges on the mounted /metrics endpoint.
const (
	mkeyLogins              metrics.MKey = "backoffice.logins"
	mkeyLoginRejections     metrics.MKey = "backoffice.login_rejections"
	mkeyAuthRejections      metrics.MKey = "backoffice.auth_rejections"
	mkeyStockRequests       metrics.MKey = "backoffice.stock_requests"
	mkeyTransactionRequests metrics.MKey = "backoffice.transaction_requests"
)

func getRouter(logger zerolog.Logger, cfg BackOfficeCfg) http.Handler {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if cfg.API.EnableCORS {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
				"X-CSRF-Token", "X-Requested-With"},
			ExposedHeaders:   []string{"Link", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // Maximum value not ignored by any of major browsers
		})
		r.Use(corsHandler.Handler)
	}

	h := handler{
		log:    logger,
		cfg:    cfg,
		tokens: map[string]UserCfg{},
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/system/user/info", h.handleUserInfo)
		r.Get("/stock/list", h.handleStockList)
		r.Get("/transaction/list", h.handleTransactionList)
	})

	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		render.Success(w, map[string]string{"app": "backoffice-stub"})
	})
	r.Mount("/", metrics.GetMonitoringMux(cfg.Monitoring))

	return r
}

type handler struct {
	log zerolog.Logger
	cfg BackOfficeCfg

	mu     sync.Mutex
	tokens map[string]UserCfg
}

func (h *handler) respond(w http.ResponseWriter, status int, resp models.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("unable to write response")
	}
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, models.Response{Message: "malformed login request"})
		return
	}

	for i, user := range h.cfg.Users {
		if user.Username != req.Username || user.Password.Get() != req.Password {
			continue
		}

		token := newToken()
		h.mu.Lock()
		h.tokens[token] = h.cfg.Users[i]
		h.mu.Unlock()

		raw, err := json.Marshal(models.LoginResponse{
			Success: true,
			Message: "login successful",
			Token:   token,
			User:    userProfile(user, int64(i)+1),
		})
		if err != nil {
			render.ServerError(w)
			return
		}

		metrics.Inc(mkeyLogins)
		h.log.Info().Str("username", user.Username).Msg("user logged in")
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(raw); err != nil {
			h.log.Error().Err(err).Msg("unable to write login response")
		}
		return
	}

	metrics.Inc(mkeyLoginRejections)
	h.respond(w, http.StatusUnauthorized, models.Response{Message: "invalid username or password"})
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.mu.Lock()
		delete(h.tokens, token)
		h.mu.Unlock()
	}

	h.respond(w, http.StatusOK, models.Response{Success: true, Message: "logged out"})
}

func (h *handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	user, idx, ok := h.authorize(r)
	if !ok {
		h.respond(w, http.StatusOK, models.Response{
			Code:    models.CodeUnauthenticated,
			Message: "session expired",
		})
		return
	}

	profile := userProfile(user, idx+1)
	info := map[string]interface{}{
		"id":           profile.ID,
		"username":     profile.Username,
		"display_name": profile.DisplayName,
		"is_active":    true,
		"permissions":  grantPayload(user.Permissions, "code", h.cfg.LegacyGrants),
		"roles":        grantPayload(user.Roles, "name", h.cfg.LegacyGrants),
		"menus":        menuPayload(user.Permissions),
	}

	raw, err := json.Marshal(info)
	if err != nil {
		render.ServerError(w)
		return
	}

	h.respond(w, http.StatusOK, models.Response{Success: true, Data: raw})
}

func (h *handler) handleStockList(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.authorize(r); !ok {
		h.respond(w, http.StatusUnauthorized, models.Response{Message: "session expired"})
		return
	}

	metrics.Inc(mkeyStockRequests)
	raw, err := json.Marshal(map[string]interface{}{"items": sampleStocks(10)})
	if err != nil {
		render.ServerError(w)
		return
	}
	h.respond(w, http.StatusOK, models.Response{Success: true, Data: raw})
}

func (h *handler) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.authorize(r); !ok {
		h.respond(w, http.StatusUnauthorized, models.Response{Message: "session expired"})
		return
	}

	metrics.Inc(mkeyTransactionRequests)
	raw, err := json.Marshal(map[string]interface{}{"items": sampleTransactions(20)})
	if err != nil {
		render.ServerError(w)
		return
	}
	h.respond(w, http.StatusOK, models.Response{Success: true, Data: raw})
}

func (h *handler) authorize(r *http.Request) (UserCfg, int64, bool) {
	token := bearerToken(r)
	if token == "" {
		metrics.Inc(mkeyAuthRejections)
		return UserCfg{}, 0, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.tokens[token]
	if !ok {
		metrics.Inc(mkeyAuthRejections)
		return UserCfg{}, 0, false
	}

	for i := range h.cfg.Users {
		if h.cfg.Users[i].Username == user.Username {
			return user, int64(i), true
		}
	}
	return user, 0, true
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

func newToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
