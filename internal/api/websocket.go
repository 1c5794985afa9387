package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/hub/session"
	"github.com/chathub/sessionhub/internal/models"
	"github.com/chathub/sessionhub/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler authenticates the connecting user via a query-string
// bearer token, checks the Security Session Manager and IP Monitor, and
// upgrades to a long-lived hub connection.
func (r *Router) WebSocketHandler(w http.ResponseWriter, req *http.Request) {
	ctx, span := otel.Tracer("websocket-server").Start(req.Context(), "WebSocketConnection")
	defer span.End()

	token := req.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		span.SetStatus(codes.Error, "missing token")
		return
	}

	claims, err := r.jwtMgr.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		span.SetStatus(codes.Error, fmt.Sprintf("invalid token: %v", err))
		return
	}
	if err := r.sessionManager.ValidateSession(claims.UserID, token); err != nil {
		http.Error(w, "Session expired or revoked", http.StatusUnauthorized)
		span.SetStatus(codes.Error, fmt.Sprintf("session invalid: %v", err))
		return
	}

	ip := clientIP(req)
	suspicious, err := r.ipMonitor.CheckIP(ip)
	if err != nil {
		http.Error(w, "Unauthorized", apperror.HTTPStatus(apperror.KindOf(err)))
		span.SetStatus(codes.Error, fmt.Sprintf("ip rejected: %v", err))
		return
	}
	if suspicious {
		r.logger.Warn(ctx, "suspicious connection volume from ip=%s user=%d", ip, claims.UserID)
	}

	if !r.connRateLimiter.Allow(ctx, claims.UserID) {
		http.Error(w, "Too many connection attempts", http.StatusTooManyRequests)
		span.SetStatus(codes.Error, "connection rate limit exceeded")
		return
	}

	span.SetAttributes(attribute.Int64("user.id", claims.UserID))

	role := roleFromString(claims.Role)

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("failed to upgrade websocket connection: %v", err))
		return
	}

	var client *ws.Client
	sess := session.NewSession(claims.UserID, claims.Username, role, senderProxy{get: func() *ws.Client { return client }})
	client = ws.NewClient(conn, sess, r.handler, r.sessions, r.rooms, r.presence, r.logger)

	span.SetStatus(codes.Ok, "websocket connection established")
	client.Start(ctx)
}

// senderProxy breaks the Session/Client initialization cycle: NewSession
// needs a Sender before the Client that implements it exists, so the proxy
// defers to a getter populated immediately after construction.
type senderProxy struct {
	get func() *ws.Client
}

func (p senderProxy) Send(frame []byte) bool {
	if c := p.get(); c != nil {
		return c.Send(frame)
	}
	return false
}

func (p senderProxy) Close() {
	if c := p.get(); c != nil {
		c.Close()
	}
}

func roleFromString(role string) models.Role {
	switch role {
	case "owner":
		return models.RoleOwner
	case "admin":
		return models.RoleAdmin
	case "moderator":
		return models.RoleModerator
	case "guest":
		return models.RoleGuest
	default:
		return models.RoleUser
	}
}
