package middleware

import (
	"time"

	"cdi-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {

		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		logFields := logrus.Fields{
			"status_code": status,
			"latency":     time.Since(start),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
			"request_id":  c.GetString(RequestIDKey),
		}
		if channel := c.Param("channel"); channel != "" {
			logFields["channel"] = channel
		}

		if len(c.Errors) > 0 {
			logFields["error"] = c.Errors.String()
			logger.WithFields(logFields).Error("Request completed with errors")
			return
		}

		switch {
		case status >= 500:
			logger.WithFields(logFields).Error("Request completed with server error")
		case status >= 400:
			logger.WithFields(logFields).Warn("Request completed with client error")
		default:
			logger.WithFields(logFields).Info("Request completed")
		}
	}
}
