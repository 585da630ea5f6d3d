package config

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// Defaults mirror the production web client: a bounded 15s wait per call,
// three retries of one second for requests that never reached the server.
const (
	DefaultRequestTimeout = 15 // seconds
	DefaultRetryBudget    = 3
	DefaultRetryDelay     = 1000 // milliseconds
)

// BackOfficeCfg is the connection configuration of the remote back-office API.
type BackOfficeCfg struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	// RequestTimeout is a fixed per-call timeout in seconds.
	RequestTimeout int64 `json:"request_timeout" yaml:"request_timeout"`
	// RetryBudget is the number of retries for requests
	// that failed without any response.
	RetryBudget int `json:"retry_budget" yaml:"retry_budget"`
	// RetryDelay is the pause between retries in milliseconds.
	RetryDelay int64 `json:"retry_delay" yaml:"retry_delay"`
}

func (cfg BackOfficeCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.BaseURL, validation.Required),
	)
}

func (cfg BackOfficeCfg) WithDefaults() BackOfficeCfg {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return cfg
}
