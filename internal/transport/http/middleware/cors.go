package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const preflightMaxAge = "86400"

// CORS answers browser cross-origin requests for the storefront SPA.
// Origins come from app.cors_origins; a single "*" entry allows any
// origin without echoing it back.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		switch origin := c.Request.Header.Get("Origin"); {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		default:
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Trace-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", preflightMaxAge)

			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
