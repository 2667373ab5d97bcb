package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"conclave/backend/internal/registration"
)

func (h *Handler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req registration.Input
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "create_registration", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	reg, err := h.registrations.Create(ctx, req)
	if err != nil {
		writeServiceError(w, logger, "create_registration", err)
		return
	}
	logger.Info("action", "action", "create_registration", "status", "success", "registration_id", reg.RegistrationID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":        true,
		"registrationId": reg.RegistrationID,
		"totalAmount":    reg.TotalAmount,
		"registration":   reg,
	})
}

func (h *Handler) ListRegistrationsByEmail(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	regs, err := h.registrations.ListByEmail(ctx, email)
	if err != nil {
		writeServiceError(w, logger, "list_registrations_by_email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"registrations": regs})
}
