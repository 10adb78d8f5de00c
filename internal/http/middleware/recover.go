package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mlcompare/internal/http/response"
	"github.com/yungbote/mlcompare/internal/platform/ctxutil"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

func Recover(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if log != nil {
					var requestID string
					if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
						requestID = td.RequestID
					}
					log.Error("panic recovered", "request_id", requestID, "route", c.FullPath(), "panic", rec, "stack", string(debug.Stack()))
				}
				response.RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
				c.Abort()
			}
		}()
		c.Next()
	}
}
