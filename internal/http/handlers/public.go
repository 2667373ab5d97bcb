package handlers

import (
	"net/http"
)

func (h *Handler) ListSponsors(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	sponsors, err := h.content.ListSponsors(ctx, true)
	if err != nil {
		writeServiceError(w, logger, "list_sponsors", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sponsors": sponsors})
}

func (h *Handler) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	speakers, err := h.content.ListSpeakers(ctx, true)
	if err != nil {
		writeServiceError(w, logger, "list_speakers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"speakers": speakers})
}

func (h *Handler) ListBanners(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	banners, err := h.content.ListBanners(ctx, true)
	if err != nil {
		writeServiceError(w, logger, "list_banners", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"banners": banners})
}

func (h *Handler) ListTeam(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	members, err := h.content.ListTeamMembers(ctx, true)
	if err != nil {
		writeServiceError(w, logger, "list_team", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"team": members})
}

func (h *Handler) PublicSettings(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		writeServiceError(w, logger, "public_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
