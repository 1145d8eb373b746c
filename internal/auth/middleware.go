// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/layersync/internal/logging"
)

// Mode selects how requests are authenticated.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeJWT   Mode = "jwt"
	ModeBasic Mode = "basic"
)

// Roles carried in Claims.Role.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	// RoleAdmin is also the role of the Basic Auth account.
	RoleAdmin = "admin"
)

// ParseMode validates a configured mode. Empty means ModeNone.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeNone:
		return ModeNone, nil
	case ModeJWT:
		return ModeJWT, nil
	case ModeBasic:
		return ModeBasic, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q", s)
	}
}

type contextKey string

const claimsContextKey contextKey = "claims"

// tokenParam names the cookie and query parameter carrying a token.
const tokenParam = "token"

// Middleware authenticates requests and stores the claims in the context.
type Middleware struct {
	mode     Mode
	jwt      *JWTManager
	basic    *BasicAuthManager
	security *logging.SecurityLogger
}

// NewMiddleware creates the middleware. jwt is required in ModeJWT and basic
// in ModeBasic.
func NewMiddleware(mode Mode, jwt *JWTManager, basic *BasicAuthManager) *Middleware {
	return &Middleware{
		mode:     mode,
		jwt:      jwt,
		basic:    basic,
		security: logging.NewSecurityLogger(),
	}
}

// Mode returns the configured mode.
func (m *Middleware) Mode() Mode {
	return m.mode
}

// Authenticate rejects unauthenticated requests with 401. In ModeNone it
// passes every request through anonymously.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch m.mode {
		case ModeJWT:
			m.handleJWT(w, r, next)
		case ModeBasic:
			m.handleBasic(w, r, next)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (m *Middleware) handleJWT(w http.ResponseWriter, r *http.Request, next http.Handler) {
	token, err := extractToken(r)
	if err != nil {
		m.security.LogTokenRejected(r.RemoteAddr, r.URL.Path, err.Error())
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		m.security.LogTokenRejected(r.RemoteAddr, r.URL.Path, err.Error())
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
		return
	}
	m.security.LogTokenAccepted(claims.Username, r.RemoteAddr, r.URL.Path)
	next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
}

func (m *Middleware) handleBasic(w http.ResponseWriter, r *http.Request, next http.Handler) {
	header := r.Header.Get("Authorization")
	if header == "" {
		w.Header().Set("WWW-Authenticate", m.basic.WWWAuthenticate())
		http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
		return
	}
	username, err := m.basic.ValidateCredentials(header)
	if err != nil {
		m.security.LogEvent(&logging.SecurityEvent{
			Event:     "basic_auth_failed",
			IPAddress: r.RemoteAddr,
			Path:      r.URL.Path,
			Error:     err.Error(),
		})
		w.Header().Set("WWW-Authenticate", m.basic.WWWAuthenticate())
		http.Error(w, "Unauthorized: invalid credentials", http.StatusUnauthorized)
		return
	}
	claims := &Claims{Username: username, Role: RoleAdmin}
	next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
}

// extractToken reads the token from the Authorization header, the token
// cookie or the token query parameter, in that order.
func extractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return "", fmt.Errorf("unauthorized: invalid authorization header")
		}
		return token, nil
	}
	if cookie, err := r.Cookie(tokenParam); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if token := r.URL.Query().Get(tokenParam); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("unauthorized: missing token")
}

// ContextWithClaims returns ctx carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// UserFromContext returns the authenticated user name, or "".
func UserFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Username
	}
	return ""
}
