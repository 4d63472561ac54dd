package middleware

import (
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
	"github.com/gin-gonic/gin"
)

// ErrorMiddleware renders the last error attached with c.Error as the JSON
// error envelope, unless the handler already wrote a response.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.As(c.Errors.Last().Err)
		if appErr.Status >= 500 {
			fylogger.ErrorLog(c.Request.Context(), "request failed", appErr, map[string]interface{}{
				"path":   c.FullPath(),
				"method": c.Request.Method,
				"code":   appErr.Code,
			})
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.Status, errors.ErrorResponse{
			Error:   appErr.Code,
			Message: appErr.Message,
			Code:    appErr.Code,
		})
	}
}
