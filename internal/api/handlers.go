package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/auth"
	"github.com/chathub/sessionhub/internal/contextkey"
)

const accessTokenLifetime = 24 * time.Hour

var bodyValidator = validator.New()

// SignupRequest defines the request body for user signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest defines the request body for user login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse defines the response body for a successful signup or login.
type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// ErrorResponse is the REST-surface error shape; the WS surface uses its
// own {type:"error", data:{code, message}} frame instead.
type ErrorResponse struct {
	Message string `json:"message"`
}

// HealthzHandler provides a simple liveness check.
func (r *Router) HealthzHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// SignupHandler registers a new account and returns a bearer token.
func (r *Router) SignupHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sr SignupRequest
	if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
		r.logger.Error(ctx, "failed to decode signup request: %v", err)
		writeError(w, apperror.New(apperror.InvalidInput, "invalid request body"))
		return
	}
	if err := bodyValidator.Struct(sr); err != nil {
		writeError(w, apperror.Wrap(apperror.InvalidInput, "invalid signup request", err))
		return
	}

	hashedPassword, err := auth.HashPassword(sr.Password)
	if err != nil {
		r.logger.Error(ctx, "failed to hash password: %v", err)
		writeError(w, apperror.Wrap(apperror.Fatal, "failed to create account", err))
		return
	}

	user, err := r.store.CreateUser(ctx, sr.Username, sr.Email, hashedPassword)
	if err != nil {
		r.logger.Error(ctx, "failed to create user: %v", err)
		writeError(w, err)
		return
	}

	token, err := r.jwtMgr.GenerateToken(user.ID, user.Username, user.Role.String(), accessTokenLifetime)
	if err != nil {
		r.logger.Error(ctx, "failed to generate token: %v", err)
		writeError(w, apperror.Wrap(apperror.Fatal, "failed to generate token", err))
		return
	}
	if err := r.sessionManager.CreateSession(user.ID, token, req.RemoteAddr); err != nil {
		r.logger.Warn(ctx, "failed to register session: user=%d err=%v", user.ID, err)
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(LoginResponse{Token: token, Message: "account created"})
}

// LoginHandler authenticates an existing account and returns a bearer token.
func (r *Router) LoginHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var lr LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&lr); err != nil {
		r.logger.Error(ctx, "failed to decode login request: %v", err)
		writeError(w, apperror.New(apperror.InvalidInput, "invalid request body"))
		return
	}
	if err := bodyValidator.Struct(lr); err != nil {
		writeError(w, apperror.Wrap(apperror.InvalidInput, "invalid login request", err))
		return
	}

	ip := clientIP(req)
	if suspicious, err := r.ipMonitor.CheckIP(ip); err != nil {
		writeError(w, err)
		return
	} else if suspicious {
		r.logger.Warn(ctx, "suspicious login volume from ip=%s", ip)
	}

	user, err := r.store.GetUserByUsername(ctx, lr.Username)
	if err != nil {
		writeError(w, apperror.New(apperror.Unauthorized, "invalid credentials"))
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, lr.Password) {
		writeError(w, apperror.New(apperror.Unauthorized, "invalid credentials"))
		return
	}

	token, err := r.jwtMgr.GenerateToken(user.ID, user.Username, user.Role.String(), accessTokenLifetime)
	if err != nil {
		r.logger.Error(ctx, "failed to generate token: %v", err)
		writeError(w, apperror.Wrap(apperror.Fatal, "failed to generate token", err))
		return
	}
	if err := r.sessionManager.CreateSession(user.ID, token, ip); err != nil {
		r.logger.Warn(ctx, "failed to register session: user=%d err=%v", user.ID, err)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{Token: token, Message: "logged in"})
}

// StatsHandler exposes the Message Analytics snapshot (C15) as a REST
// endpoint, mounted behind AuthMiddleware so only authenticated users can
// pull hub-wide message volume and activity data.
func (r *Router) StatsHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	stats, err := r.store.GetMessageStats(ctx)
	if err != nil {
		r.logger.Error(ctx, "failed to compute message stats: %v", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// AuthMiddleware validates the bearer JWT, checks it against the Security
// Session Manager's live session (so a revoked/expired session is rejected
// even with a structurally valid token), and stashes claims in context.
func (r *Router) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tokenString := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			writeError(w, apperror.New(apperror.Unauthorized, "authorization token required"))
			return
		}

		claims, err := r.jwtMgr.ValidateToken(tokenString)
		if err != nil {
			writeError(w, apperror.New(apperror.Unauthorized, "invalid token"))
			return
		}
		if err := r.sessionManager.ValidateSession(claims.UserID, tokenString); err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(req.Context(), contextkey.ContextKeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, contextkey.ContextKeyClaims, claims)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperror.HTTPStatus(apperror.KindOf(err)))
	json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()})
}

func clientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return req.RemoteAddr
}
