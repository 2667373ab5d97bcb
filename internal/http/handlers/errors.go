package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"conclave/backend/internal/integrations"
	"conclave/backend/internal/integrations/razorpay"
	"conclave/backend/internal/payments"
	"conclave/backend/internal/registration"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/ticketing"
	"conclave/backend/internal/visitors"
)

// errorStatus maps domain errors to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	var validationErr *registration.ValidationError
	var gatewayErr *razorpay.APIError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, registration.ErrRegistrationClosed):
		return http.StatusForbidden, "registration is closed"
	case errors.Is(err, repository.ErrRegistrationNotFound):
		return http.StatusNotFound, "registration not found"
	case errors.Is(err, repository.ErrPaymentNotFound):
		return http.StatusNotFound, "payment not found"
	case errors.Is(err, repository.ErrSponsorNotFound),
		errors.Is(err, repository.ErrSponsorRequestNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrSponsorRequestDecided):
		return http.StatusConflict, "sponsor request already decided"
	case errors.Is(err, repository.ErrTicketNotActive):
		return http.StatusConflict, "ticket is not active"
	case errors.Is(err, repository.ErrPaymentAlreadySettled),
		errors.Is(err, payments.ErrAlreadyPaid):
		return http.StatusConflict, "payment already succeeded"
	case errors.Is(err, payments.ErrNotPaid):
		return http.StatusConflict, "registration is not paid"
	case errors.Is(err, repository.ErrInvalidTicketStatus):
		return http.StatusBadRequest, "invalid ticket status"
	case errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid signature"
	case errors.Is(err, razorpay.ErrMalformedWebhook):
		return http.StatusBadRequest, "invalid payload"
	case errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrAmountMismatch),
		errors.Is(err, payments.ErrInvalidAction),
		errors.Is(err, payments.ErrInvalidMethod),
		errors.Is(err, payments.ErrMissingFields),
		errors.Is(err, visitors.ErrPageRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ticketing.ErrInvalidQRPayload), errors.Is(err, ticketing.ErrInvalidQRSign):
		return http.StatusBadRequest, "invalid ticket code"
	case errors.Is(err, integrations.ErrUnsupportedImage):
		return http.StatusBadRequest, "unsupported image"
	case errors.As(err, &gatewayErr):
		return http.StatusInternalServerError, "payment gateway error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeServiceError logs and writes err. Server-side failures are logged at
// error level, client mistakes at warn.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("action", "action", action, "status", "failed", "error", err)
	} else {
		logger.Warn("action", "action", action, "status", message)
	}
	var gatewayErr *razorpay.APIError
	if errors.As(err, &gatewayErr) {
		writeErrorDetail(w, status, message, gatewayErr.Description)
		return
	}
	writeError(w, status, message)
}
