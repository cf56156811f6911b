package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type key string

// TraceIdKey is the context key under which middleware.Logger stores the
// request trace id.
const TraceIdKey key = "1"

// GetTraceIdOfRequest returns the trace id assigned to the request by the
// logging middleware. Requests that bypassed the middleware still get an
// id so log lines are never missing one.
func GetTraceIdOfRequest(c *gin.Context) string {
	ctx := c.Request.Context()
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		traceId = uuid.NewString()
	}
	return traceId
}
