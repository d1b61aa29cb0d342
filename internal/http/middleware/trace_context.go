package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/vibelist-backend/internal/platform/ctxutil"
)

const (
	headerTraceID     = "X-Trace-Id"
	headerRequestID   = "X-Request-Id"
	headerTraceparent = "traceparent"

	maxRequestIDLen = 128
)

// AttachTraceContext tags each request with a request id and a trace id.
// The trace id comes from the active span, then a W3C traceparent header,
// then X-Trace-Id, and is generated when none is usable.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := cleanRequestID(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}

		span := trace.SpanFromContext(c.Request.Context())
		traceID := ""
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = traceIDFromTraceparent(c.GetHeader(headerTraceparent))
		}
		if traceID == "" {
			traceID = cleanRequestID(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		span.SetAttributes(attribute.String("http.request_id", reqID))

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
			ClientIP:  c.ClientIP(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerTraceID, traceID)
		c.Header(headerRequestID, reqID)
		c.Next()
	}
}

// cleanRequestID drops caller supplied ids that are too long or contain
// anything but [A-Za-z0-9._-].
func cleanRequestID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxRequestIDLen {
		return ""
	}
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return v
}

// traceIDFromTraceparent extracts the trace id of a version-00 traceparent:
// "00-<32 hex>-<16 hex>-<2 hex>".
func traceIDFromTraceparent(v string) string {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 || parts[0] != "00" || len(parts[1]) != 32 {
		return ""
	}
	id, err := trace.TraceIDFromHex(parts[1])
	if err != nil || !id.IsValid() {
		return ""
	}
	return id.String()
}
