package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status and client message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError walks cases in order, answering with the first
// matching sentinel. Unmatched errors are logged and become a 500.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases []ErrorCase, fallback string) {
	if respondRateLimited(c, err) {
		return
	}

	for _, ec := range cases {
		if errors.Is(err, ec.Err) {
			c.JSON(ec.Status, NewErrorResponse(c, ec.Message))
			return
		}
	}

	if log != nil {
		log.Error("unhandled handler error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, fallback))
}

// respondRateLimited answers 429 with a Retry-After hint when the error
// carries block metadata. Returns false for everything else.
func respondRateLimited(c *gin.Context, err error) bool {
	var limited *usecase.TooManyAttemptsError
	if !errors.As(err, &limited) {
		return false
	}

	retryAfter := int(limited.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, RateLimitedResponse{
		Success:    false,
		Error:      "too many attempts, please try again later",
		RetryAfter: retryAfter,
		TraceID:    traceIDStr,
	})
	return true
}
