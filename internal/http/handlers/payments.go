package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"conclave/backend/internal/integrations/razorpay"
	"conclave/backend/internal/payments"
)

const maxWebhookBody = 1 << 20

func (h *Handler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req payments.OrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "create_payment_order", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.payments.CreateOrder(ctx, req)
	if err != nil {
		writeServiceError(w, logger, "create_payment_order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req payments.VerifyInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "verify_payment", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.payments.VerifyGatewayPayment(ctx, req)
	if err != nil {
		writeServiceError(w, logger, "verify_payment", err)
		return
	}
	logger.Info("action", "action", "verify_payment", "status", "success", "registration_id", result.Registration.RegistrationID, "changed", result.Changed)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"registrationId": result.Registration.RegistrationID,
		"paymentStatus":  result.Registration.PaymentStatus,
		"ticketStatus":   result.Registration.TicketStatus,
		"qrCode":         result.Registration.QRCode,
	})
}

// PaymentWebhook needs the raw body for the signature, so it reads it before
// any decoding.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn("action", "action", "payment_webhook", "status", "read_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "invalid body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.payments.HandleWebhook(ctx, body, r.Header.Get("x-razorpay-signature"))
	if err != nil {
		// Signature and parse failures answer 5xx; missing records are acknowledged below.
		if errors.Is(err, payments.ErrInvalidSignature) || errors.Is(err, razorpay.ErrMalformedWebhook) {
			logger.Warn("action", "action", "payment_webhook", "status", "rejected", "error", err)
			writeError(w, http.StatusInternalServerError, "webhook rejected")
			return
		}
		writeServiceError(w, logger, "payment_webhook", err)
		return
	}
	logger.Info("action", "action", "payment_webhook", "status", "ok", "event", result.Event, "handled", result.Handled, "warning", result.Warning)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received":       true,
		"event":          result.Event,
		"handled":        result.Handled,
		"registrationId": result.RegistrationID,
		"warning":        result.Warning,
	})
}
