package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"conclave/backend/internal/models"

	"github.com/go-chi/chi/v5"
)

type sponsorRequestPayload struct {
	CompanyName     string `json:"companyName" validate:"required,max=200"`
	ContactName     string `json:"contactName" validate:"required,max=200"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Phone           string `json:"phone" validate:"required,max=32"`
	Tier            string `json:"tier" validate:"max=50"`
	Website         string `json:"website" validate:"omitempty,url"`
	LogoURL         string `json:"logoUrl" validate:"omitempty,url"`
	RequestedAmount int64  `json:"requestedAmount"`
	Message         string `json:"message" validate:"max=4000"`
}

// CreateSponsorRequest validates everything, including the minimum amount,
// before the store is touched.
func (h *Handler) CreateSponsorRequest(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req sponsorRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "create_sponsor_request", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.ContactName = strings.TrimSpace(req.ContactName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "create_sponsor_request", "status", "invalid_fields")
		writeError(w, http.StatusBadRequest, "companyName, contactName, email and phone are required")
		return
	}
	if req.RequestedAmount < models.MinSponsorRequestAmount {
		logger.Warn("action", "action", "create_sponsor_request", "status", "amount_below_minimum", "amount", req.RequestedAmount)
		writeError(w, http.StatusBadRequest, "requestedAmount must be at least 25000")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		writeServiceError(w, logger, "create_sponsor_request", err)
		return
	}
	if !settings.SponsorRequestsOpen {
		writeError(w, http.StatusForbidden, "sponsor requests are closed")
		return
	}

	stored, err := h.store.CreateSponsorRequest(ctx, models.SponsorRequest{
		CompanyName:     req.CompanyName,
		ContactName:     req.ContactName,
		Email:           req.Email,
		Phone:           req.Phone,
		Tier:            strings.TrimSpace(req.Tier),
		Website:         strings.TrimSpace(req.Website),
		LogoURL:         strings.TrimSpace(req.LogoURL),
		RequestedAmount: req.RequestedAmount,
		Message:         strings.TrimSpace(req.Message),
	})
	if err != nil {
		writeServiceError(w, logger, "create_sponsor_request", err)
		return
	}
	logger.Info("action", "action", "create_sponsor_request", "status", "success", "sponsor_request_id", stored.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "request": stored})
}

func (h *Handler) AdminListSponsorRequests(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	switch status {
	case "", models.SponsorRequestPending, models.SponsorRequestApproved, models.SponsorRequestRejected:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	requests, err := h.store.ListSponsorRequests(ctx, status)
	if err != nil {
		writeServiceError(w, logger, "list_sponsor_requests", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

type approveSponsorRequestPayload struct {
	DisplayOrder int `json:"displayOrder"`
}

func (h *Handler) AdminApproveSponsorRequest(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req approveSponsorRequestPayload
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	request, sponsor, err := h.store.ApproveSponsorRequest(ctx, chi.URLParam(r, "id"), req.DisplayOrder)
	if err != nil {
		writeServiceError(w, logger, "approve_sponsor_request", err)
		return
	}
	logger.Info("action", "action", "approve_sponsor_request", "status", "success", "sponsor_request_id", request.ID, "sponsor_id", sponsor.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"request": request, "sponsor": sponsor})
}

type rejectSponsorRequestPayload struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *Handler) AdminRejectSponsorRequest(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req rejectSponsorRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "reason too long")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	request, err := h.store.RejectSponsorRequest(ctx, chi.URLParam(r, "id"), strings.TrimSpace(req.Reason))
	if err != nil {
		writeServiceError(w, logger, "reject_sponsor_request", err)
		return
	}
	logger.Info("action", "action", "reject_sponsor_request", "status", "success", "sponsor_request_id", request.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"request": request})
}
