package database

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/voicememo/errors"
)

// IsBusyError reports sqlite lock contention, which clears on retry.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// IsNotFoundError checks if the error is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// FromDatabase converts a database error to an AppError.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict(resource + " already exists").WithCause(err)
	}
	if IsBusyError(err) {
		return apperrors.New(apperrors.ErrCodeDatabaseError,
			"Database is busy. Please try again.", http.StatusServiceUnavailable).WithCause(err)
	}
	return apperrors.DatabaseError(err)
}
