package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yenvi12/aifshop-auth/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller-supplied X-Request-ID, minting a
// fresh uuid when the header is absent. The id rides both the response
// header and the request context so access logs can correlate entries
// across the gateway and this service.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), logger.RequestIDKey{}, id),
		)

		c.Next()
	}
}
