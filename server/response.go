package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/voicememo/errors"
)

// Envelope wraps every successful JSON body. Errors use
// apperrors.ErrorResponse instead.
type Envelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta accompanies list responses.
type Meta struct {
	Total int `json:"total"`
	// Running counts listed tasks with an active pipeline run.
	Running int `json:"running"`
	// ByStatus counts listed tasks per status label.
	ByStatus map[string]int `json:"by_status,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	if data == nil {
		c.Status(status)
		return
	}
	c.JSON(status, Envelope{Data: data})
}

func respondTasks(c *gin.Context, views []TaskView) {
	meta := &Meta{Total: len(views), ByStatus: make(map[string]int)}
	for _, v := range views {
		meta.ByStatus[v.StatusLabel]++
		if v.Running {
			meta.Running++
		}
	}
	c.JSON(http.StatusOK, Envelope{Data: views, Meta: meta})
}

// respondError maps err onto its HTTP status. Anything that is not an
// *apperrors.AppError is reported as a 500.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}
