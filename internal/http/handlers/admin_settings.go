package handlers

import (
	"encoding/json"
	"net/http"

	"conclave/backend/internal/models"
)

func (h *Handler) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		writeServiceError(w, logger, "get_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn("action", "action", "update_settings", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(patch); err != nil {
		writeError(w, http.StatusBadRequest, "display counters must not be negative")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	settings, err := h.store.UpdateSettings(ctx, patch)
	if err != nil {
		writeServiceError(w, logger, "update_settings", err)
		return
	}
	logger.Info("action", "action", "update_settings", "status", "success")
	writeJSON(w, http.StatusOK, settings)
}
