// Package api wires the REST auth/health surface and the WebSocket upgrade
// endpoint onto one net/http.ServeMux. Grounded on 0DukePan's
// internal/api/router.go's middleware-chaining and Prometheus-endpoint
// idiom; the old REST room/message CRUD endpoints are gone because the
// wire protocol (internal/ws + internal/handler) is now the sole surface
// for room and message operations.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chathub/sessionhub/internal/auth"
	"github.com/chathub/sessionhub/internal/config"
	"github.com/chathub/sessionhub/internal/handler"
	"github.com/chathub/sessionhub/internal/hub/presence"
	"github.com/chathub/sessionhub/internal/hub/room"
	"github.com/chathub/sessionhub/internal/hub/session"
	"github.com/chathub/sessionhub/internal/logging"
	"github.com/chathub/sessionhub/internal/middleware"
	"github.com/chathub/sessionhub/internal/security/ipmonitor"
	"github.com/chathub/sessionhub/internal/security/sessionmanager"
	"github.com/chathub/sessionhub/internal/store"
)

// Router owns the HTTP mux and every dependency its handlers need.
type Router struct {
	mux             *http.ServeMux
	store           *store.Store
	jwtMgr          *auth.JWTManager
	sessionManager  *sessionmanager.Manager
	ipMonitor       *ipmonitor.Monitor
	handler         *handler.Handler
	sessions        *session.Registry
	rooms           *room.Registry
	presence        *presence.Tracker
	connRateLimiter *middleware.ConnectionRateLimiter
	logger          *logging.Logger
	cfg             *config.Config
}

// NewRouter assembles the HTTP surface: public auth/health routes, a
// connection-rate-limited WebSocket upgrade endpoint, and Prometheus
// metrics.
func NewRouter(
	st *store.Store,
	jwtMgr *auth.JWTManager,
	sessionManager *sessionmanager.Manager,
	ipMonitor *ipmonitor.Monitor,
	h *handler.Handler,
	sessions *session.Registry,
	rooms *room.Registry,
	presenceTracker *presence.Tracker,
	connRateLimiter *middleware.ConnectionRateLimiter,
	logger *logging.Logger,
	cfg *config.Config,
) http.Handler {
	r := &Router{
		mux:             http.NewServeMux(),
		store:           st,
		jwtMgr:          jwtMgr,
		sessionManager:  sessionManager,
		ipMonitor:       ipMonitor,
		handler:         h,
		sessions:        sessions,
		rooms:           rooms,
		presence:        presenceTracker,
		connRateLimiter: connRateLimiter,
		logger:          logger,
		cfg:             cfg,
	}

	r.mux.HandleFunc("/auth/signup", r.SignupHandler)
	r.mux.HandleFunc("/auth/login", r.LoginHandler)
	r.mux.HandleFunc("/healthz", r.HealthzHandler)
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.Handle("/stats", r.AuthMiddleware(http.HandlerFunc(r.StatsHandler)))
	// The WS upgrade handler authenticates via query-string token and
	// applies connRateLimiter itself, since the upgrade happens before any
	// header-based AuthMiddleware context would be available.
	r.mux.HandleFunc("/ws", r.WebSocketHandler)

	// RequestIDMiddleware runs first so its context value is already set by
	// the time TracingMiddleware tags the span with hub.request_id.
	routerWithMiddleware := middleware.TracingMiddleware(r.mux)
	routerWithMiddleware = middleware.RequestIDMiddleware(routerWithMiddleware)
	return routerWithMiddleware
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
