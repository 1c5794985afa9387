package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/chathub/sessionhub/internal/contextkey"
)

// statusWriter captures the status code a handler writes so the span can
// record it after ServeHTTP returns; http.ResponseWriter has no getter for it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// TracingMiddleware starts a server span for every request the hub's mux
// handles, the /ws upgrade request included (WebSocketHandler opens its own
// connection span as well), propagating any upstream trace context and
// recording the eventual response status.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("sessionhub")
	propagator := propagation.TraceContext{}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, req.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.target", req.URL.Path),
			attribute.String("http.flavor", req.Proto),
			attribute.String("http.user_agent", req.UserAgent()),
			attribute.String("http.client_ip", req.RemoteAddr),
		)
		if requestID, ok := req.Context().Value(contextkey.ContextKeyRequestID).(string); ok {
			span.SetAttributes(attribute.String("hub.request_id", requestID))
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		req = req.WithContext(ctx)
		next.ServeHTTP(sw, req)

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}
