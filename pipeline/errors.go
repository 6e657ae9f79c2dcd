package pipeline

import (
	"net/http"

	"github.com/kbukum/voicememo/errors"
)

// ChannelNotFound is returned when a node reads a channel the board never
// received.
func ChannelNotFound(id int) *errors.AppError {
	return errors.Newf(errors.ErrCodeChannelNotFound, http.StatusInternalServerError, "Channel %d not found", id).
		WithDetail("channel", id)
}

// InputMissing is returned when a step's input artifact is absent.
func InputMissing(description string) *errors.AppError {
	return errors.Newf(errors.ErrCodeInputMissing, http.StatusUnprocessableEntity, "Input missing: %s", description)
}

// TranscodeFailed is returned for any validation or encoder failure.
func TranscodeFailed(cause error) *errors.AppError {
	return errors.New(errors.ErrCodeTranscodeFailed, "Transcoding failed", http.StatusUnprocessableEntity).
		WithCause(cause)
}

// TaskRunning means the remote task has not finished yet. It is the only
// error the orchestrator retries.
func TaskRunning() *errors.AppError {
	return errors.New(errors.ErrCodeTaskRunning, "Task is still running", http.StatusAccepted)
}

// TaskFailed means the provider reported the remote task as failed.
func TaskFailed(reason string) *errors.AppError {
	return errors.Newf(errors.ErrCodeTaskFailed, http.StatusBadGateway, "Task failed: %s", reason).
		WithDetail("reason", reason)
}

// CloudError wraps transport or storage failures outside the provider
// error vocabulary.
func CloudError(cause error) *errors.AppError {
	return errors.Newf(errors.ErrCodeCloudError, http.StatusBadGateway, "Cloud service error: %s", errors.Message(cause)).
		WithCause(cause)
}

// IsTaskRunning reports whether err asks for another poll. A bare 202
// status from older provider code paths counts as running too.
func IsTaskRunning(err error) bool {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return false
	}
	return appErr.Code == errors.ErrCodeTaskRunning || appErr.HTTPStatus == http.StatusAccepted
}

// isTaskNotFound matches the local provider's answer for ids it no longer
// knows, which happens after a process restart.
func isTaskNotFound(err error) bool {
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeTaskFailed {
		return false
	}
	reason, _ := appErr.Details["reason"].(string)
	return reason == taskNotFoundReason
}

const taskNotFoundReason = "Task not found"
