package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"conclave/backend/internal/models"
	"conclave/backend/internal/ticketing"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketId"))
	if ticketID == "" {
		writeError(w, http.StatusBadRequest, "ticket id required")
		return
	}
	if sig := r.URL.Query().Get("sig"); sig != "" && h.cfg.Ticketing.SigningSecret != "" {
		if !ticketing.VerifyRegistrationSignature(h.cfg.Ticketing.SigningSecret, ticketID, sig) {
			logger.Warn("action", "action", "verify_ticket", "status", "bad_signature", "registration_id", ticketID)
			writeError(w, http.StatusBadRequest, "invalid ticket code")
			return
		}
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	reg, err := h.store.GetRegistration(ctx, ticketID)
	if err != nil {
		writeServiceError(w, logger, "verify_ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, ticketVerification(reg))
}

func ticketVerification(reg models.Registration) models.TicketVerification {
	return models.TicketVerification{
		Valid:          reg.PaymentStatus == models.PaymentStatusSuccess && reg.TicketStatus == models.TicketStatusActive,
		RegistrationID: reg.RegistrationID,
		Name:           reg.Name,
		Category:       reg.Category,
		TicketTypes:    reg.AllTicketTypes(),
		Attendees:      reg.AttendeeCount(),
		PaymentStatus:  reg.PaymentStatus,
		TicketStatus:   reg.TicketStatus,
		CheckedInAt:    reg.CheckedInAt,
	}
}

type checkInRequest struct {
	TicketID  string `json:"ticketId"`
	QRPayload string `json:"qrPayload"`
}

func (h *Handler) CheckInTicket(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "check_in_ticket", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ticketID := strings.TrimSpace(req.TicketID)
	if payload := strings.TrimSpace(req.QRPayload); payload != "" {
		parsed, err := ticketing.ParseTicketURL(h.cfg.Ticketing.SigningSecret, payload)
		if err != nil {
			writeServiceError(w, logger, "check_in_ticket", err)
			return
		}
		ticketID = parsed
	}
	if ticketID == "" {
		writeError(w, http.StatusBadRequest, "ticketId or qrPayload required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	reg, err := h.store.CheckInRegistration(ctx, ticketID)
	if err != nil {
		writeServiceError(w, logger, "check_in_ticket", err)
		return
	}
	logger.Info("action", "action", "check_in_ticket", "status", "success", "registration_id", reg.RegistrationID)
	writeJSON(w, http.StatusOK, ticketVerification(reg))
}
