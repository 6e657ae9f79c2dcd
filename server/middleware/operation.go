package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/observability"
)

// Operation traces every routed request as "http METHOD /route/:pattern".
// The :id route parameter becomes the task id. Unrouted requests pass
// through untraced.
func Operation(serviceName string, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}

		name := c.Request.Method + " " + route
		ctx, op := observability.StartOperation(c.Request.Context(), observability.SpanHTTP+name, observability.Operation{
			Service:   serviceName,
			Name:      name,
			RequestID: c.GetHeader(RequestIDHeader),
			TaskID:    c.Param("id"),
		}, metrics)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		op.End(ctx, strconv.Itoa(c.Writer.Status()), err)
	}
}
