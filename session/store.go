package session

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/metrics"
	"github.com/alan14500171/stock/models"
)

// Durable storage keys, fixed by the storage contract with older client builds.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyLoggedIn = "isLoggedIn"

	loggedInTrue = "true"
)

// adminUsernames is the fixed administrative identity set. IsAdmin is the single
// owner of this check; the permission cache and the navigation guard call it
// instead of re-deriving the predicate.
//
//nolint:gochecknoglobals
var adminUsernames = map[string]struct{}{
	"alan":  {},
	"admin": {},
}

// Session is the authenticated identity and credential held by the client.
// Authenticated is true only when the token is present, the stored user parses
// and the logged-in flag is set.
type Session struct {
	Token         string
	User          *models.User
	Authenticated bool
}

// Store holds the current session in memory, backed by durable storage.
// It is the single writer of credential state.
type Store struct {
	mu      sync.Mutex
	storage Storage
	log     zerolog.Logger

	current *Session
}

func NewStore(logger zerolog.Logger, storage Storage) *Store {
	return &Store{
		storage: storage,
		log:     logger.With().Str("component", "session_store").Logger(),
	}
}

// Current returns the in-memory session, falling back to durable storage on
// cold start. Malformed stored data is treated as an absent session and the
// corrupted entries are wiped so the failure does not repeat.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		sess := s.readDurable()
		s.current = &sess
	}
	return *s.current
}

// SetCredentials marks the session authenticated and persists it.
func (s *Store) SetCredentials(token string, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawUser, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}

	if err := s.storage.Set(KeyToken, []byte(token)); err != nil {
		return errors.Wrap(err, "failed to persist token")
	}
	if err := s.storage.Set(KeyUser, rawUser); err != nil {
		return errors.Wrap(err, "failed to persist user")
	}
	if err := s.storage.Set(KeyLoggedIn, []byte(loggedInTrue)); err != nil {
		return errors.Wrap(err, "failed to persist login flag")
	}

	s.current = &Session{
		Token:         token,
		User:          &user,
		Authenticated: true,
	}

	s.log.Debug().Str("username", user.Username).Msg("credentials stored")
	return nil
}

// Clear wipes the in-memory and durable session state. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wipeDurable()
	s.current = &Session{}
	metrics.Inc(config.SessionsCleared)
}

// IsAdmin reports whether the current session belongs to one of the fixed
// administrative identities.
func (s *Store) IsAdmin() bool {
	sess := s.Current()
	if sess.User == nil {
		return false
	}

	_, ok := adminUsernames[sess.User.Username]
	return ok
}

func (s *Store) readDurable() Session {
	var sess Session

	if raw, err := s.storage.Get(KeyToken); err == nil {
		sess.Token = string(raw)
	}

	rawFlag, err := s.storage.Get(KeyLoggedIn)
	loggedIn := err == nil && string(rawFlag) == loggedInTrue

	user, ok := s.readStoredUser()
	if !ok {
		// corrupted user data discredits the whole session; the token
		// must not outlive the wipe
		return Session{}
	}
	sess.User = user

	sess.Authenticated = loggedIn && sess.Token != "" && user != nil && user.Username != ""
	return sess
}

// readStoredUser parses the persisted user profile. A missing value yields
// (nil, true); anything unparsable yields (nil, false) after wiping the
// corrupted entries.
func (s *Store) readStoredUser() (*models.User, bool) {
	raw, err := s.storage.Get(KeyUser)
	if err != nil {
		return nil, true
	}

	text := string(raw)
	if text == "" || text == "undefined" || text == "null" {
		s.log.Warn().Str("stored", text).Msg("corrupted user entry in storage, wiping")
		s.wipeDurable()
		return nil, false
	}

	user := new(models.User)
	if err := json.Unmarshal(raw, user); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse stored user, wiping")
		s.wipeDurable()
		return nil, false
	}

	return user, true
}

func (s *Store) wipeDurable() {
	for _, key := range []string{KeyToken, KeyUser, KeyLoggedIn} {
		if err := s.storage.Delete(key); err != nil {
			s.log.Debug().Err(err).Str("key", key).Msg("failed to delete storage key")
		}
	}
}
