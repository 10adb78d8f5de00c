package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mlcompare/internal/platform/ctxutil"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

// quietRoutes are polled constantly; successful hits log at Debug.
var quietRoutes = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

func requestFields(c *gin.Context, elapsed time.Duration) []interface{} {
	route := c.FullPath()
	fields := []interface{}{
		"method", c.Request.Method,
		"route", route,
		"status", c.Writer.Status(),
		"bytes", c.Writer.Size(),
		"duration_ms", elapsed.Milliseconds(),
	}
	if route == "" || route != c.Request.URL.Path {
		fields = append(fields, "path", c.Request.URL.Path)
	}
	ctx := c.Request.Context()
	if td := ctxutil.GetTraceData(ctx); td != nil {
		fields = append(fields, "request_id", td.RequestID, "trace_id", td.TraceID)
	}
	if sid := ctxutil.FormSession(ctx); sid != "" {
		fields = append(fields, "session_id", sid)
	}
	if len(c.Errors) > 0 {
		fields = append(fields, "errors", c.Errors.String())
	}
	return fields
}

// RequestLogger writes one line per finished request. The level follows the
// status class.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := requestFields(c, time.Since(start))
		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		case quietRoutes[c.FullPath()]:
			log.Debug("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
