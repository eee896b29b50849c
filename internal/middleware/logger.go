package middleware

import (
	"log"
	"strconv"
	"time"

	"nguvuhire/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs each request and records it in the HTTP metrics. The
// route template is used as the path label to keep cardinality bounded.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed.Seconds())
		log.Printf("[HTTP] %s %s %d %s ip=%s", c.Request.Method, c.Request.URL.Path, status, elapsed.Round(time.Millisecond), c.ClientIP())
	}
}
