package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Printf("[%s] %s %s client=%s %d %v",
			c.Request.Method,
			path,
			c.ClientIP(),
			GetClientID(c),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
