package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"conclave/backend/internal/auth"
	authmw "conclave/backend/internal/http/middleware"
)

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminLogin exchanges the admin email and password for a bearer token.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	if h.cfg.Admin.SessionSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "admin sessions disabled")
		return
	}
	if !h.loginLimiter.Allow(authmw.ClientIP(r)) {
		logger.Warn("action", "action", "admin_login", "status", "rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "admin_login", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	creds := auth.AdminCredentials{
		Email:        h.cfg.Admin.Email,
		Password:     h.cfg.Admin.Password,
		PasswordHash: h.cfg.Admin.PasswordHash,
	}
	if !creds.Check(req.Email, req.Password) {
		logger.Warn("action", "action", "admin_login", "status", "invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	token, expiresAt, err := auth.SignAdminToken(h.cfg.Admin.SessionSecret, email, h.cfg.Admin.SessionTTL, h.now())
	if err != nil {
		logger.Error("action", "action", "admin_login", "status", "token_error", "error", err)
		writeError(w, http.StatusInternalServerError, "token error")
		return
	}
	h.loginLimiter.Reset(authmw.ClientIP(r))
	logger.Info("action", "action", "admin_login", "status", "success", "admin", email)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"token":     token,
		"expiresAt": expiresAt,
		"email":     email,
	})
}
