package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	authmw "conclave/backend/internal/http/middleware"
	"conclave/backend/internal/models"
	"conclave/backend/internal/payments"
	"conclave/backend/internal/ticketing"

	"github.com/go-chi/chi/v5"
)

const exportTimeout = 30 * time.Second

func registrationFilterFromQuery(r *http.Request) models.RegistrationFilter {
	limit, offset := parsePagination(r)
	q := r.URL.Query()
	return models.RegistrationFilter{
		PaymentStatus: strings.TrimSpace(q.Get("paymentStatus")),
		TicketStatus:  strings.TrimSpace(q.Get("ticketStatus")),
		Search:        strings.TrimSpace(q.Get("search")),
		Limit:         limit,
		Offset:        offset,
	}
}

func (h *Handler) AdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	filter := registrationFilterFromQuery(r)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	regs, total, err := h.store.ListRegistrations(ctx, filter)
	if err != nil {
		writeServiceError(w, logger, "list_registrations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registrations": regs,
		"total":         total,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})
}

func (h *Handler) AdminGetRegistration(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	reg, err := h.store.GetRegistration(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "get_registration", err)
		return
	}
	out := map[string]interface{}{"registration": reg}
	payment, err := h.store.GetPaymentByRegistrationID(ctx, reg.RegistrationID)
	if err == nil {
		out["payment"] = payment
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AdminUpdateRegistration(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var patch models.RegistrationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn("action", "action", "update_registration", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if patch.Email != nil {
		if err := h.validator.Var(strings.TrimSpace(*patch.Email), "required,email"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid email")
			return
		}
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	reg, err := h.store.UpdateRegistration(ctx, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, logger, "update_registration", err)
		return
	}
	logger.Info("action", "action", "update_registration", "status", "success", "registration_id", reg.RegistrationID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"registration": reg})
}

func (h *Handler) AdminCancelRegistration(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	reg, err := h.store.CancelRegistration(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "cancel_registration", err)
		return
	}
	logger.Info("action", "action", "cancel_registration", "status", "success", "registration_id", reg.RegistrationID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"registration": reg})
}

func (h *Handler) AdminResendTicket(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	reg, err := h.payments.ResendTicket(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, logger, "resend_ticket", err)
		return
	}
	logger.Info("action", "action", "resend_ticket", "status", "success", "registration_id", reg.RegistrationID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "registration": reg})
}

// AdminExportRegistrations streams the registrations as a quoted CSV
// attachment. The body is built first so a query failure can still be
// reported as JSON.
func (h *Handler) AdminExportRegistrations(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	filter := registrationFilterFromQuery(r)

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	rows, err := h.store.ListRegistrationsForExport(ctx, filter)
	if err != nil {
		writeServiceError(w, logger, "export_registrations", err)
		return
	}
	var buf bytes.Buffer
	if err := ticketing.WriteRegistrationsCSV(&buf, rows); err != nil {
		writeServiceError(w, logger, "export_registrations", err)
		return
	}
	fileName := "registrations-" + h.now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	logger.Info("action", "action", "export_registrations", "status", "success", "rows", len(rows))
}

func (h *Handler) AdminListPayments(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	limit, offset := parsePagination(r)
	filter := models.PaymentFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Method: strings.TrimSpace(r.URL.Query().Get("method")),
		Limit:  limit,
		Offset: offset,
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	items, total, err := h.store.ListPayments(ctx, filter)
	if err != nil {
		writeServiceError(w, logger, "list_payments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": items, "total": total})
}

func (h *Handler) AdminVerifyPayment(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req payments.AdminVerifyInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "admin_verify_payment", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "registrationId and action required")
		return
	}
	admin, _ := authmw.AdminEmailFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	result, err := h.payments.AdminVerify(ctx, req, admin)
	if err != nil {
		writeServiceError(w, logger, "admin_verify_payment", err)
		return
	}
	logger.Info("action", "action", "admin_verify_payment", "status", "success",
		"registration_id", result.Registration.RegistrationID,
		"payment_status", result.Registration.PaymentStatus,
		"changed", result.Changed,
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"registration": result.Registration,
		"payment":      result.Payment,
		"emailSent":    result.EmailSent,
	})
}

func (h *Handler) AdminDashboardStats(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	stats, err := h.store.RegistrationStats(ctx)
	if err != nil {
		writeServiceError(w, logger, "dashboard_stats", err)
		return
	}
	paid, err := h.store.ListPaidRegistrations(ctx)
	if err != nil {
		writeServiceError(w, logger, "dashboard_stats", err)
		return
	}
	visits, err := h.store.VisitorStats(ctx, h.now().UTC().Add(-24*time.Hour), 5)
	if err != nil {
		writeServiceError(w, logger, "dashboard_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registrations": stats,
		"ticketTypes":   ticketing.AggregateTicketTypes(paid),
		"visitors24h":   visits,
	})
}
