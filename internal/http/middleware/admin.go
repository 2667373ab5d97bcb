package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"conclave/backend/internal/auth"
)

type contextKey string

const (
	adminEmailKey  contextKey = "admin_email"
	adminMarkerKey contextKey = "admin_marker"
)

// adminMarker lets the outer request logger learn which admin a request
// authenticated as.
type adminMarker struct {
	email string
}

func withAdminMarker(ctx context.Context, marker *adminMarker) context.Context {
	return context.WithValue(ctx, adminMarkerKey, marker)
}

const (
	HeaderAdminEmail    = "x-admin-email"
	HeaderAdminPassword = "x-admin-password"
)

func AdminEmailFromContext(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(adminEmailKey).(string)
	return val, ok && val != ""
}

// WithAdminEmail marks the context as authenticated by the given admin.
func WithAdminEmail(ctx context.Context, email string) context.Context {
	if marker, ok := ctx.Value(adminMarkerKey).(*adminMarker); ok {
		marker.email = email
	}
	return context.WithValue(ctx, adminEmailKey, email)
}

// AdminAuth guards admin routes. A request passes with either the
// x-admin-email/x-admin-password header pair or a bearer session token
// issued by the login endpoint.
func AdminAuth(creds auth.AdminCredentials, sessionSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email, ok := bearerAdmin(r, sessionSecret); ok {
				next.ServeHTTP(w, r.WithContext(WithAdminEmail(r.Context(), email)))
				return
			}

			email := r.Header.Get(HeaderAdminEmail)
			password := r.Header.Get(HeaderAdminPassword)
			if email == "" || password == "" {
				logger.Warn("admin_auth", "status", "missing_credentials", "path", r.URL.Path)
				writeUnauthorized(w)
				return
			}
			if !creds.Check(email, password) {
				logger.Warn("admin_auth", "status", "invalid_credentials", "path", r.URL.Path)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdminEmail(r.Context(), strings.TrimSpace(email))))
		})
	}
}

func bearerAdmin(r *http.Request, secret string) (string, bool) {
	if secret == "" {
		return "", false
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	claims, err := auth.ParseAdminToken(secret, strings.TrimSpace(parts[1]))
	if err != nil {
		return "", false
	}
	return claims.Email, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
