package kafka

import (
	"net/http"
	"strings"

	"github.com/kbukum/voicememo/errors"
)

var (
	connectionPatterns = []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection closed",
		"dial tcp",
	}
	transientPatterns = []string{
		"temporary",
		"request timed out",
		"not enough replicas",
	}
)

func matches(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError reports whether err means no broker could be reached.
func IsConnectionError(err error) bool { return matches(err, connectionPatterns) }

// IsRetryableError reports whether a write that failed with err may
// succeed when repeated.
func IsRetryableError(err error) bool {
	return IsConnectionError(err) || matches(err, transientPatterns)
}

// FromKafka classifies a write error for topic.
func FromKafka(err error, topic string) *errors.AppError {
	if err == nil {
		return nil
	}
	switch {
	case IsConnectionError(err):
		return errors.New(errors.ErrCodeServiceUnavailable, "Event broker unavailable", http.StatusServiceUnavailable).
			WithDetail("topic", topic).WithCause(err)
	case IsRetryableError(err):
		return errors.New(errors.ErrCodeExternalService, "Event broker busy", http.StatusServiceUnavailable).
			WithDetail("topic", topic).WithCause(err)
	default:
		return errors.Internal(err).WithDetail("topic", topic)
	}
}
