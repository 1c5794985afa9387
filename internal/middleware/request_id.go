package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/chathub/sessionhub/internal/contextkey"
)

// RequestIDMiddleware generates a unique request ID and adds it to the context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := uuid.New().String()
		ctx := context.WithValue(req.Context(), contextkey.ContextKeyRequestID, requestID)
		req = req.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, req)
	})
}
