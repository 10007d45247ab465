package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids caching of responses. Session state changes on every call.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
