package config

import (
	"github.com/alan14500171/stock/metrics"
)

const (
	TransportRequests     metrics.MKey = "transport.requests"
	TransportRetries      metrics.MKey = "transport.retries"
	TransportAuthFailures metrics.MKey = "transport.auth_failures"
	GuardAllowed          metrics.MKey = "guard.allowed"
	GuardRedirected       metrics.MKey = "guard.redirected"
	PermissionLoads       metrics.MKey = "permission.loads"
	SessionsCleared       metrics.MKey = "session.cleared"
)

func registerAllKeys() {
	metrics.RegisterGauges(
		TransportRequests,
		TransportRetries,
		TransportAuthFailures,
		GuardAllowed,
		GuardRedirected,
		PermissionLoads,
		SessionsCleared,
	)
}
