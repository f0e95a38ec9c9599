package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/meshkit/logger"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// RequestID makes sure every request carries X-Request-ID and
// X-Correlation-ID. Missing ids are generated; the correlation id defaults to
// the request id. Both are echoed on the response and stored in the request
// context for logger.WithContext and outbound calls.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID, correlationID := requestIDs(r.Header)
			r.Header.Set(HeaderRequestID, requestID)
			r.Header.Set(HeaderCorrelationID, correlationID)
			w.Header().Set(HeaderRequestID, requestID)
			w.Header().Set(HeaderCorrelationID, correlationID)

			ctx := logger.ContextWithRequestID(r.Context(), requestID)
			ctx = logger.ContextWithCorrelationID(ctx, correlationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GinRequestID is RequestID for a gin engine. The request id is also set
// under the "request_id" key of the gin context.
func GinRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, correlationID := requestIDs(c.Request.Header)
		c.Request.Header.Set(HeaderRequestID, requestID)
		c.Request.Header.Set(HeaderCorrelationID, correlationID)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderCorrelationID, correlationID)
		c.Set(logger.FieldRequestID, requestID)

		ctx := logger.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(logger.ContextWithCorrelationID(ctx, correlationID))
		c.Next()
	}
}

func requestIDs(h http.Header) (requestID, correlationID string) {
	requestID = h.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	correlationID = h.Get(HeaderCorrelationID)
	if correlationID == "" {
		correlationID = requestID
	}
	return requestID, correlationID
}
