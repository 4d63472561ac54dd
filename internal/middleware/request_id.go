package middleware

import (
	"screener-web/pkg/backend"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID accepts an incoming X-Request-ID or mints one, echoes it on the
// response and carries it into backend calls made with the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(backend.RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set("request_id", id)
		c.Header(backend.RequestIDHeader, id)
		c.Request = c.Request.WithContext(backend.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
