package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/vibelist-backend/internal/http/response"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/ctxutil"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// Probe and scrape routes are logged at debug and kept out of the request
// metrics.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
	"/metrics":     true,
}

// Observe logs every request and records its latency. Unmatched paths are
// reported under the "unmatched" route label to bound cardinality.
func Observe(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		quiet := quietRoutes[route]
		if !quiet {
			m.ApiInflightInc()
		}
		start := time.Now()

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()
		if route == "" {
			route = "unmatched"
		}
		if !quiet {
			m.ApiInflightDec()
			m.ObserveAPI(c.Request.Method, route, status, dur)
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", dur.Milliseconds(),
		}
		fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
		if code, ok := c.Get(response.ErrorCodeKey); ok {
			fields = append(fields, "error_code", code)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		switch {
		case quiet && status < 500:
			log.Debug("HTTP request", fields...)
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
