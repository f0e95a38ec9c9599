package errors

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Availability errors. All of them are retryable.
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	// ErrCodeNoHealthyInstance means the registry had no selectable instance.
	ErrCodeNoHealthyInstance ErrorCode = "NO_HEALTHY_INSTANCE"
	// ErrCodeCircuitOpen means a breaker rejected the call without running it.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeRequestTimeout means a single attempt overran its deadline.
	ErrCodeRequestTimeout ErrorCode = "REQUEST_TIMEOUT"
)

// Resource errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"
)

// Validation errors
const (
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Internal errors
const (
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService   ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeHealthCheckFailed ErrorCode = "HEALTH_CHECK_FAILED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeNoHealthyInstance:  true,
	ErrCodeCircuitOpen:        true,
	ErrCodeRequestTimeout:     true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode reports whether errors with the given code may be retried.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
