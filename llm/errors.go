package llm

// ErrorCode aligns provider failures with HTTP status, retryability and
// degradation strategy.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // malformed parameters or payload
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // missing or invalid credentials
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"            // permission or content policy refusal
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // upstream or local throttling
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"       // credits exhausted
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // model overloaded / circuit open
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // upstream timed out
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // upstream 5xx / network failure
	ErrHistoryUnavailable  ErrorCode = "LLM_HISTORY_UNAVAILABLE"  // conversation history store failure
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // provider unavailable
)

// Error is the unified provider error. Reasoning-channel degradations
// (malformed or oversized fields) are never surfaced as an Error; they are
// recovered locally with a diagnostic so the user still receives the
// ordinary content of the turn.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }
