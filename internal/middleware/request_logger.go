package middleware

import (
	"strconv"
	"time"

	"walletd/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs each request and records its latency. Query strings are never logged
// because the websocket token travels there.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     route,
			"status":   status,
			"duration": elapsed.String(),
		})
		if status >= 500 {
			entry.Error("HTTP request")
			return
		}
		entry.Debug("HTTP request")
	}
}
