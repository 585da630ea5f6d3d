package transport

import (
	"github.com/pkg/errors"
)

// Classification sentinels. Every terminal rejection of a call wraps exactly
// one of these; callers match with the predicates below instead of inspecting
// HTTP status codes themselves.
var (
	// ErrUnauthenticated: no or expired session. The client has already
	// cleared the session store by the time this is returned.
	ErrUnauthenticated = errors.New("authentication failed, please log in again")
	// ErrForbidden: valid session, insufficient grant. Session state untouched.
	ErrForbidden = errors.New("no permission for this operation")
	// ErrServer: the back office answered with a 5xx.
	ErrServer = errors.New("back office internal error")
	// ErrNetwork: no response received and the retry budget is exhausted.
	ErrNetwork = errors.New("network error, check your connection")
	// ErrTimeout: the bounded per-call wait elapsed. Never retried.
	ErrTimeout = errors.New("request timed out")
)

func IsUnauthenticated(err error) bool { return errors.Cause(err) == ErrUnauthenticated }

func IsForbidden(err error) bool { return errors.Cause(err) == ErrForbidden }

func IsServerError(err error) bool { return errors.Cause(err) == ErrServer }

func IsNetworkError(err error) bool { return errors.Cause(err) == ErrNetwork }

func IsTimeout(err error) bool { return errors.Cause(err) == ErrTimeout }
