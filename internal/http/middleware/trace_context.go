package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/studysprint/studysprint-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext gives every request a trace id and a request id,
// honoring caller-supplied headers so a client can correlate its session
// stream with the control calls that drive it. Both ids are echoed back on
// the response.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, reqID := requestIdentity(c)

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

// requestIdentity resolves the trace id from the header, then the active
// otel span, then a fresh uuid; the request id from the header or a fresh
// uuid.
func requestIdentity(c *gin.Context) (traceID, reqID string) {
	traceID = strings.TrimSpace(c.GetHeader(headerTraceID))
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
			traceID = spanCtx.TraceID().String()
		}
	}
	if traceID == "" {
		traceID = uuid.New().String()
	}
	reqID = strings.TrimSpace(c.GetHeader(headerRequestID))
	if reqID == "" {
		reqID = uuid.New().String()
	}
	return traceID, reqID
}
