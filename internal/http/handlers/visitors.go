package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	authmw "conclave/backend/internal/http/middleware"
	"conclave/backend/internal/models"
)

type trackVisitorRequest struct {
	Page      string `json:"page"`
	SessionID string `json:"sessionId"`
	Referrer  string `json:"referrer"`
}

func (h *Handler) TrackVisitor(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req trackVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "track_visitor", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	tracked, err := h.visitors.Track(ctx, models.Visitor{
		IP:        authmw.ClientIP(r),
		UserAgent: r.UserAgent(),
		Page:      req.Page,
		SessionID: req.SessionID,
		Referrer:  req.Referrer,
	})
	if err != nil {
		writeServiceError(w, logger, "track_visitor", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"tracked": tracked})
}

func (h *Handler) AdminVisitorStats(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	days := queryInt(r, "days", 7, 1, 365)
	since := h.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	stats, err := h.store.VisitorStats(ctx, since, 10)
	if err != nil {
		writeServiceError(w, logger, "visitor_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
