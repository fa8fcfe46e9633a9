package ctxmanage

import (
	"github.com/gin-gonic/gin"
)

type key string

// TraceIdKey is set on the gin context by the logging middleware for every request.
const TraceIdKey key = "1"

func GetTraceIdOfRequest(c *gin.Context) string {
	ctx := c.Request.Context()
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		// request somehow skipped the logger middleware
		return "unknown"
	}
	return traceId
}
