package transcription

import (
	"net/http"

	"github.com/kbukum/voicememo/errors"
)

// InvalidCredentials reports missing or rejected provider credentials.
func InvalidCredentials() *errors.AppError {
	return errors.New(errors.ErrCodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

// TaskCreationFailed reports a rejected CreateTask call.
func TaskCreationFailed(reason string) *errors.AppError {
	return errors.New(errors.ErrCodeTaskCreationFailed, "Failed to create task: "+reason, http.StatusBadGateway)
}

// TaskQueryFailed reports a failed status query or result download.
func TaskQueryFailed(reason string) *errors.AppError {
	return errors.New(errors.ErrCodeTaskQueryFailed, "Failed to query task: "+reason, http.StatusBadGateway)
}

// InvalidURL reports a URL that cannot be requested.
func InvalidURL(url string) *errors.AppError {
	return errors.New(errors.ErrCodeInvalidURL, "Invalid URL: "+url, http.StatusBadRequest).
		WithDetail("url", url)
}

// ParseError reports a response body that does not have the expected shape.
func ParseError(reason string) *errors.AppError {
	return errors.New(errors.ErrCodeParseError, "Failed to parse response: "+reason, http.StatusBadGateway)
}

// ServiceUnavailable reports a backend that cannot take work.
func ServiceUnavailable() *errors.AppError {
	return errors.New(errors.ErrCodeServiceUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable)
}
