// internal/api/error_codes.go
package api

// Error codes carried in APIError.Code.
const (
	// Generic codes
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorTimeout       = "REQUEST_TIMEOUT"

	// Catalog and chat codes
	ErrorSongNotFound       = "SONG_NOT_FOUND"
	ErrorSessionNotFound    = "SESSION_NOT_FOUND"
	ErrorSearchQueryInvalid = "SEARCH_QUERY_INVALID"

	// LLM service codes
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionTestFailed  = "CONNECTION_TEST_FAILED"

	// Transport codes
	ErrorWebSocketUpgrade  = "WEBSOCKET_UPGRADE_FAILED"
	ErrorRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)
