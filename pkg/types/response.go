package types

// SuccessEnvelope wraps every JSON success body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a pkgerrors.Error. RequestID echoes the
// X-Request-Id header so a customer reporting a failed acceptance can be
// matched to server logs.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
