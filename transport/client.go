package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/metrics"
	"github.com/alan14500171/stock/models"
	"github.com/alan14500171/stock/session"
)

const (
	pathLogin    = "/api/auth/login"
	pathLogout   = "/api/auth/logout"
	pathUserInfo = "/api/system/user/info"

	// cacheBusterParam defeats intermediate caching of GET responses.
	cacheBusterParam = "_t"
)

// Client is the single chokepoint for outbound back-office calls. It attaches
// the stored credential, classifies every response and retries idempotent
// requests that failed without a response.
type Client struct {
	http     *http.Client
	baseURL  string
	sessions *session.Store
	log      zerolog.Logger

	retryBudget int
	retryDelay  time.Duration

	// onSessionExpired runs after an authentication failure cleared the
	// session store; the app uses it to force navigation to the login view.
	onSessionExpired func()
}

type Option func(*Client)

// WithTransport overrides the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithSessionExpiredHook sets the callback fired after the session was
// invalidated by an authentication failure.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

func NewClient(logger zerolog.Logger, cfg config.BackOfficeCfg, sessions *session.Store, opts ...Option) *Client {
	cfg = cfg.WithDefaults()

	client := &Client{
		http: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		sessions:    sessions,
		log:         logger.With().Str("component", "transport").Logger(),
		retryBudget: cfg.RetryBudget,
		retryDelay:  time.Duration(cfg.RetryDelay) * time.Millisecond,
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Login exchanges credentials for a session token. Not retried: the call is
// not idempotent from the back office's point of view.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	body, err := json.Marshal(models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal login request")
	}

	raw, _, err := c.do(ctx, &call{method: http.MethodPost, path: pathLogin, body: body})
	if err != nil {
		return nil, err
	}

	login := new(models.LoginResponse)
	if err := json.Unmarshal(raw, login); err != nil {
		return nil, errors.Wrap(err, "failed to parse login response")
	}
	if !login.Success {
		return nil, errors.Errorf("login rejected: %s", login.Message)
	}

	return login, nil
}

// Logout tells the back office to drop the server-side session. Failures are
// reported but the caller clears local state regardless.
func (c *Client) Logout(ctx context.Context) error {
	_, _, err := c.do(ctx, &call{method: http.MethodPost, path: pathLogout})
	return err
}

// UserInfo fetches the profile and grants of the current session.
func (c *Client) UserInfo(ctx context.Context) (*models.UserInfo, error) {
	info := new(models.UserInfo)
	if err := c.GetJSON(ctx, pathUserInfo, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetJSON performs an idempotent GET and decodes the envelope's data field
// into out. Retried on transient network failure.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	_, envelope, err := c.do(ctx, &call{
		method:    http.MethodGet,
		path:      path,
		query:     query,
		retryable: true,
	})
	if err != nil {
		return err
	}

	if !envelope.Success {
		return errors.Errorf("request failed: %s", envelope.Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(envelope.Data, out), "failed to parse response data")
}

// PostJSON performs a non-idempotent POST; never retried.
func (c *Client) PostJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}

	_, envelope, err := c.do(ctx, &call{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return err
	}

	if !envelope.Success {
		return errors.Errorf("request failed: %s", envelope.Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(envelope.Data, out), "failed to parse response data")
}

// call is the per-request context: fixed parameters plus the retry counter.
type call struct {
	method     string
	path       string
	query      url.Values
	body       []byte
	retryable  bool
	retryCount int
}

func (c *Client) do(ctx context.Context, rc *call) ([]byte, *models.Response, error) {
	if rc.method == http.MethodGet {
		if rc.query == nil {
			rc.query = url.Values{}
		}
		if rc.query.Get(cacheBusterParam) == "" {
			rc.query.Set(cacheBusterParam, fmt.Sprintf("%d", time.Now().UnixNano()/int64(time.Millisecond)))
		}
	}

	for {
		raw, envelope, err := c.attempt(ctx, rc)
		if err == nil {
			return raw, envelope, nil
		}

		if !IsNetworkError(err) || !rc.retryable || rc.retryCount >= c.retryBudget {
			return nil, nil, err
		}

		rc.retryCount++
		metrics.Inc(config.TransportRetries)
		c.log.Warn().Err(err).
			Str("path", rc.path).
			Int("retry", rc.retryCount).
			Msg("request failed without response, retrying")

		select {
		case <-ctx.Done():
			return nil, nil, errors.Wrap(ctx.Err(), "retry aborted")
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Client) attempt(ctx context.Context, rc *call) ([]byte, *models.Response, error) {
	metrics.Inc(config.TransportRequests)

	target := c.baseURL + rc.path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	var reqBody *bytes.Reader
	if rc.body != nil {
		reqBody = bytes.NewReader(rc.body)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, target, reqBody)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if sess := c.sessions.Current(); sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, nil, errors.Wrapf(ErrTimeout, "%s %s", rc.method, rc.path)
		}
		return nil, nil, errors.Wrapf(ErrNetwork, "%s %s: %v", rc.method, rc.path, err)
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrNetwork, "%s %s: reading body: %v", rc.method, rc.path, err)
	}

	return c.classify(rc, resp.StatusCode, raw)
}

// classify funnels every response into a parsed payload or a typed rejection.
func (c *Client) classify(rc *call, status int, raw []byte) ([]byte, *models.Response, error) {
	envelope := new(models.Response)
	parseErr := json.Unmarshal(raw, envelope)

	// The back office may signal an expired session inside a 200 envelope.
	expired := status == http.StatusUnauthorized ||
		(parseErr == nil && envelope.Code == models.CodeUnauthenticated)
	if expired {
		c.invalidateSession()
		return nil, nil, errors.Wrapf(ErrUnauthenticated, "%s %s", rc.method, rc.path)
	}

	switch {
	case status == http.StatusForbidden:
		return nil, nil, errors.Wrapf(ErrForbidden, "%s %s", rc.method, rc.path)
	case status >= http.StatusInternalServerError:
		return nil, nil, errors.Wrapf(ErrServer, "%s %s: status %d", rc.method, rc.path, status)
	case status >= http.StatusBadRequest:
		// 4xx carries an application message when the envelope parsed
		if parseErr == nil && envelope.Message != "" {
			return nil, nil, errors.Errorf("%s %s: %s", rc.method, rc.path, envelope.Message)
		}
		return nil, nil, errors.Errorf("%s %s: unexpected status %d", rc.method, rc.path, status)
	}

	if parseErr != nil {
		return nil, nil, errors.Wrapf(parseErr, "%s %s: failed to parse response", rc.method, rc.path)
	}

	return raw, envelope, nil
}

func (c *Client) invalidateSession() {
	metrics.Inc(config.TransportAuthFailures)
	c.sessions.Clear()
	c.log.Warn().Msg("session rejected by back office, credentials cleared")

	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func isTimeout(err error) bool {
	type timeout interface {
		Timeout() bool
	}

	for err != nil {
		if t, ok := err.(timeout); ok && t.Timeout() {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
