package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable at the transport layer)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// Resource and input errors
const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Pipeline errors. Only ErrCodeTaskRunning is retried by the orchestrator.
const (
	ErrCodeChannelNotFound ErrorCode = "CHANNEL_NOT_FOUND"
	ErrCodeInputMissing    ErrorCode = "INPUT_MISSING"
	ErrCodeTranscodeFailed ErrorCode = "TRANSCODE_FAILED"
	ErrCodeTaskRunning     ErrorCode = "TASK_RUNNING"
	ErrCodeTaskFailed      ErrorCode = "TASK_FAILED"
	ErrCodeCloudError      ErrorCode = "CLOUD_ERROR"
)

// Transcription provider errors
const (
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTaskCreationFailed ErrorCode = "TASK_CREATION_FAILED"
	ErrCodeTaskQueryFailed    ErrorCode = "TASK_QUERY_FAILED"
	ErrCodeInvalidURL         ErrorCode = "INVALID_URL"
	ErrCodeParseError         ErrorCode = "PARSE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeTaskRunning:        true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
