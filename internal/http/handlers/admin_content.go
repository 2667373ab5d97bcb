package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"conclave/backend/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, action string, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("action", "action", action, "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		logger.Warn("action", "action", action, "status", "invalid_fields", "error", err)
		writeError(w, http.StatusBadRequest, "invalid fields")
		return false
	}
	return true
}

// discardMedia removes a replaced or orphaned image. Failures are only logged.
func (h *Handler) discardMedia(logger *slog.Logger, oldURL, newURL string) {
	oldURL = strings.TrimSpace(oldURL)
	if h.media == nil || oldURL == "" || oldURL == strings.TrimSpace(newURL) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.media.DeleteByURL(ctx, oldURL); err != nil {
		logger.Warn("action", "action", "discard_media", "status", "failed", "url", oldURL, "error", err)
	}
}

func (h *Handler) AdminListSponsors(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	items, err := h.content.ListSponsors(ctx, false)
	if err != nil {
		writeServiceError(w, logger, "list_sponsors", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sponsors": items})
}

func (h *Handler) AdminCreateSponsor(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.SponsorInput
	if !h.decodeAndValidate(w, r, logger, "create_sponsor", &in) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.CreateSponsor(ctx, in)
	if err != nil {
		writeServiceError(w, logger, "create_sponsor", err)
		return
	}
	logger.Info("action", "action", "create_sponsor", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"sponsor": item})
}

func (h *Handler) AdminUpdateSponsor(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.SponsorInput
	if !h.decodeAndValidate(w, r, logger, "update_sponsor", &in) {
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	current, err := h.content.GetSponsor(ctx, id)
	if err != nil {
		writeServiceError(w, logger, "update_sponsor", err)
		return
	}
	item, err := h.content.UpdateSponsor(ctx, id, in)
	if err != nil {
		writeServiceError(w, logger, "update_sponsor", err)
		return
	}
	h.discardMedia(logger, current.LogoURL, item.LogoURL)
	logger.Info("action", "action", "update_sponsor", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"sponsor": item})
}

func (h *Handler) AdminDeleteSponsor(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.DeleteSponsor(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "delete_sponsor", err)
		return
	}
	h.discardMedia(logger, item.LogoURL, "")
	logger.Info("action", "action", "delete_sponsor", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) AdminListSpeakers(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	items, err := h.content.ListSpeakers(ctx, false)
	if err != nil {
		writeServiceError(w, logger, "list_speakers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"speakers": items})
}

func (h *Handler) AdminCreateSpeaker(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.SpeakerInput
	if !h.decodeAndValidate(w, r, logger, "create_speaker", &in) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.CreateSpeaker(ctx, in)
	if err != nil {
		writeServiceError(w, logger, "create_speaker", err)
		return
	}
	logger.Info("action", "action", "create_speaker", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"speaker": item})
}

func (h *Handler) AdminUpdateSpeaker(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.SpeakerInput
	if !h.decodeAndValidate(w, r, logger, "update_speaker", &in) {
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	current, err := h.content.GetSpeaker(ctx, id)
	if err != nil {
		writeServiceError(w, logger, "update_speaker", err)
		return
	}
	item, err := h.content.UpdateSpeaker(ctx, id, in)
	if err != nil {
		writeServiceError(w, logger, "update_speaker", err)
		return
	}
	h.discardMedia(logger, current.ImageURL, item.ImageURL)
	logger.Info("action", "action", "update_speaker", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"speaker": item})
}

func (h *Handler) AdminDeleteSpeaker(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.DeleteSpeaker(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "delete_speaker", err)
		return
	}
	h.discardMedia(logger, item.ImageURL, "")
	logger.Info("action", "action", "delete_speaker", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) AdminListBanners(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	items, err := h.content.ListBanners(ctx, false)
	if err != nil {
		writeServiceError(w, logger, "list_banners", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"banners": items})
}

func (h *Handler) AdminCreateBanner(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.BannerInput
	if !h.decodeAndValidate(w, r, logger, "create_banner", &in) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.CreateBanner(ctx, in)
	if err != nil {
		writeServiceError(w, logger, "create_banner", err)
		return
	}
	logger.Info("action", "action", "create_banner", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"banner": item})
}

func (h *Handler) AdminUpdateBanner(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.BannerInput
	if !h.decodeAndValidate(w, r, logger, "update_banner", &in) {
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	current, err := h.content.GetBanner(ctx, id)
	if err != nil {
		writeServiceError(w, logger, "update_banner", err)
		return
	}
	item, err := h.content.UpdateBanner(ctx, id, in)
	if err != nil {
		writeServiceError(w, logger, "update_banner", err)
		return
	}
	h.discardMedia(logger, current.ImageURL, item.ImageURL)
	logger.Info("action", "action", "update_banner", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"banner": item})
}

func (h *Handler) AdminDeleteBanner(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.DeleteBanner(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "delete_banner", err)
		return
	}
	h.discardMedia(logger, item.ImageURL, "")
	logger.Info("action", "action", "delete_banner", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) AdminListTeamMembers(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	items, err := h.content.ListTeamMembers(ctx, false)
	if err != nil {
		writeServiceError(w, logger, "list_team_members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"team": items})
}

func (h *Handler) AdminCreateTeamMember(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.TeamMemberInput
	if !h.decodeAndValidate(w, r, logger, "create_team_member", &in) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.CreateTeamMember(ctx, in)
	if err != nil {
		writeServiceError(w, logger, "create_team_member", err)
		return
	}
	logger.Info("action", "action", "create_team_member", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"member": item})
}

func (h *Handler) AdminUpdateTeamMember(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var in models.TeamMemberInput
	if !h.decodeAndValidate(w, r, logger, "update_team_member", &in) {
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	current, err := h.content.GetTeamMember(ctx, id)
	if err != nil {
		writeServiceError(w, logger, "update_team_member", err)
		return
	}
	item, err := h.content.UpdateTeamMember(ctx, id, in)
	if err != nil {
		writeServiceError(w, logger, "update_team_member", err)
		return
	}
	h.discardMedia(logger, current.ImageURL, item.ImageURL)
	logger.Info("action", "action", "update_team_member", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"member": item})
}

func (h *Handler) AdminDeleteTeamMember(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	item, err := h.content.DeleteTeamMember(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "delete_team_member", err)
		return
	}
	h.discardMedia(logger, item.ImageURL, "")
	logger.Info("action", "action", "delete_team_member", "status", "success", "id", item.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
