package models

import (
	"encoding/json"
)

// CodeUnauthenticated is the application-level "session expired" signal that the
// back office may deliver inside an HTTP 200 envelope.
const CodeUnauthenticated = 401

// Response is the standard back-office API envelope.
type Response struct {
	Success bool            `json:"success"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
