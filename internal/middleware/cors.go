package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Browser dashboards call this API cross-origin, so every response carries
// these headers. The allowed request headers cover what the web client's
// fetch wrapper actually sends.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// CORS sets the cross-origin headers on every response and short-circuits
// preflight requests with a bare 200.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", corsAllowOrigin)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
