package middleware

import (
	"context"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

// requestIDSources are tried in order. The QStash message id lets a delayed
// callback be traced back to its dispatch.
var requestIDSources = []string{requestIDHeader, "Upstash-Message-Id"}

// RequestID tags the request context, the log context and the response with
// a request id, minting one when the caller sent none.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := inboundRequestID(r)
			w.Header().Set(requestIDHeader, reqID)

			ctx := context.WithValue(r.Context(), chimw.RequestIDKey, reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func inboundRequestID(r *http.Request) string {
	for _, header := range requestIDSources {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" && len(v) <= maxRequestIDLen {
			return v
		}
	}
	return uuid.NewString()
}
