package types

// SuccessEnvelope wraps every 2xx body: {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a typed error. Code is one of the
// pkg/errors codes (VALIDATION_ERROR, CONFLICT, ...); Details only appears
// for codes whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error body: {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
