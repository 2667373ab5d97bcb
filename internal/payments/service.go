// Package payments owns the payment lifecycle of a registration: opening a
// gateway order and confirming or rejecting the payment from the browser
// callback, the gateway webhook or an admin decision.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"conclave/backend/internal/integrations/razorpay"
	"conclave/backend/internal/models"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/ticketing"
)

// Source identifies which confirmation path triggered a transition.
type Source string

const (
	SourceGatewaySync Source = "gateway-sync"
	SourceWebhook     Source = "webhook"
	SourceAdminManual Source = "admin-manual"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

const defaultRejectReason = "Payment could not be verified"

var (
	ErrInvalidSignature  = errors.New("invalid payment signature")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrAmountMismatch    = errors.New("amount does not match registration total")
	ErrAlreadyPaid       = errors.New("registration already paid")
	ErrInvalidAction     = errors.New("action must be approve or reject")
	ErrInvalidMethod     = errors.New("paymentMethod must be manual or gateway")
	ErrMissingFields     = errors.New("missing payment fields")
	ErrNotPaid           = errors.New("registration is not paid")
	ErrUnsupportedResult = errors.New("unsupported payment outcome")
)

type Store interface {
	GetRegistration(ctx context.Context, registrationID string) (models.Registration, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error)
	GetPaymentByRegistrationID(ctx context.Context, registrationID string) (models.Payment, error)
	UpsertPayment(ctx context.Context, params repository.UpsertPaymentParams) (models.Payment, error)
	ApplyPaymentOutcome(ctx context.Context, params repository.PaymentOutcomeParams) (repository.PaymentOutcome, error)
	SetRegistrationQRCode(ctx context.Context, registrationID, qrCode string, overwrite bool) (bool, error)
}

type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, in razorpay.OrderRequest) (razorpay.Order, error)
}

type Notifier interface {
	SendTicket(ctx context.Context, reg models.Registration, qrPNG []byte) error
	SendPaymentRejected(ctx context.Context, reg models.Registration, reason string) error
}

type Options struct {
	KeySecret     string
	WebhookSecret string
	AppURL        string
	SigningSecret string
}

type Service struct {
	store    Store
	gateway  Gateway
	notifier Notifier
	opts     Options
	logger   *slog.Logger
}

func NewService(store Store, gateway Gateway, notifier Notifier, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.WebhookSecret) == "" {
		opts.WebhookSecret = opts.KeySecret
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Transition is one request to settle a registration's payment.
type Transition struct {
	Source           Source
	Outcome          string
	RegistrationID   string
	Method           string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	UPIID            string
	TransactionID    string
	Notes            string
	VerifiedBy       string
	Reason           string
}

// Result is the state after a transition and which side effects ran.
type Result struct {
	Registration models.Registration `json:"registration"`
	Payment      models.Payment      `json:"payment"`
	Changed      bool                `json:"changed"`
	EmailSent    bool                `json:"emailSent"`
}

// Apply moves a registration to success or failed and runs the side effects:
// the QR is issued once on success and the email goes out only when the
// payment status actually changed. QR and mail failures are logged, not
// returned.
func (s *Service) Apply(ctx context.Context, t Transition) (Result, error) {
	if t.Outcome != models.PaymentStatusSuccess && t.Outcome != models.PaymentStatusFailed {
		return Result{}, ErrUnsupportedResult
	}
	logger := s.logger.With("source", string(t.Source), "registration_id", t.RegistrationID, "outcome", t.Outcome)

	params := repository.PaymentOutcomeParams{
		Payment: repository.UpsertPaymentParams{
			RegistrationID:   t.RegistrationID,
			Currency:         models.CurrencyINR,
			Method:           t.Method,
			Status:           t.Outcome,
			GatewayOrderID:   t.GatewayOrderID,
			GatewayPaymentID: t.GatewayPaymentID,
			GatewaySignature: t.GatewaySignature,
			UPIID:            t.UPIID,
			TransactionID:    t.TransactionID,
			VerifiedBy:       t.VerifiedBy,
			Notes:            t.Notes,
		},
		AllowDowngrade: t.Source == SourceAdminManual,
	}
	if params.Payment.Method == "" {
		params.Payment.Method = models.PaymentMethodGateway
	}
	if t.Outcome == models.PaymentStatusFailed {
		params.Payment.FailureReason = t.Reason
	}

	outcome, err := s.store.ApplyPaymentOutcome(ctx, params)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		Registration: outcome.Registration,
		Payment:      outcome.Payment,
		Changed:      outcome.Changed(),
	}
	logger.Info("payment_transition", "changed", result.Changed, "ticket_status", result.Registration.TicketStatus)

	if t.Outcome == models.PaymentStatusSuccess {
		png, reg, ok := s.ensureQR(ctx, result.Registration, logger)
		result.Registration = reg
		if !result.Changed || !ok || s.notifier == nil {
			return result, nil
		}
		if err := s.notifier.SendTicket(ctx, reg, png); err != nil {
			logger.Error("ticket_email_failed", "error", err)
			return result, nil
		}
		result.EmailSent = true
		return result, nil
	}

	if result.Changed && s.notifier != nil {
		if err := s.notifier.SendPaymentRejected(ctx, result.Registration, t.Reason); err != nil {
			logger.Error("rejection_email_failed", "error", err)
			return result, nil
		}
		result.EmailSent = true
	}
	return result, nil
}

// ensureQR returns the ticket QR PNG, issuing and storing it when the
// registration has none yet.
func (s *Service) ensureQR(ctx context.Context, reg models.Registration, logger *slog.Logger) ([]byte, models.Registration, bool) {
	if reg.QRCode != "" {
		png, err := ticketing.DecodeDataURL(reg.QRCode)
		if err == nil {
			return png, reg, true
		}
		logger.Warn("stored_qr_unreadable", "error", err)
	}
	png, dataURL, err := ticketing.IssueTicketQR(s.opts.AppURL, s.opts.SigningSecret, reg.RegistrationID)
	if err != nil {
		logger.Error("qr_generation_failed", "error", err)
		return nil, reg, false
	}
	stored, err := s.store.SetRegistrationQRCode(ctx, reg.RegistrationID, dataURL, reg.QRCode != "")
	if err != nil {
		logger.Error("qr_store_failed", "error", err)
		return png, reg, true
	}
	if stored {
		reg.QRCode = dataURL
		return png, reg, true
	}
	current, err := s.store.GetRegistration(ctx, reg.RegistrationID)
	if err != nil || current.QRCode == "" {
		return png, reg, true
	}
	if existing, err := ticketing.DecodeDataURL(current.QRCode); err == nil {
		reg.QRCode = current.QRCode
		return existing, reg, true
	}
	return png, reg, true
}

// OrderInput opens a gateway order for a registration. Amount is in rupees
// and, when given, must equal the registration total.
type OrderInput struct {
	RegistrationID string `json:"registrationId"`
	Amount         *int64 `json:"amount"`
}

type OrderResult struct {
	OrderID        string `json:"orderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
	RegistrationID string `json:"registrationId"`
}

// CreateOrder opens a gateway order and records the pending payment. A local
// write failure after the order exists is logged; the webhook settles it later.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (OrderResult, error) {
	registrationID := strings.TrimSpace(in.RegistrationID)
	if registrationID == "" {
		return OrderResult{}, ErrMissingFields
	}
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return OrderResult{}, err
	}
	if reg.PaymentStatus == models.PaymentStatusSuccess {
		return OrderResult{}, ErrAlreadyPaid
	}
	amount := reg.TotalAmount
	if in.Amount != nil {
		if *in.Amount <= 0 {
			return OrderResult{}, ErrInvalidAmount
		}
		if *in.Amount != amount {
			return OrderResult{}, ErrAmountMismatch
		}
	}
	if amount <= 0 {
		return OrderResult{}, ErrInvalidAmount
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   ticketing.ToMinorUnits(amount),
		Currency: models.CurrencyINR,
		Receipt:  reg.RegistrationID,
		Notes: map[string]string{
			"registrationId": reg.RegistrationID,
			"email":          reg.Email,
		},
	})
	if err != nil {
		return OrderResult{}, fmt.Errorf("create gateway order: %w", err)
	}

	if _, err := s.store.UpsertPayment(ctx, repository.UpsertPaymentParams{
		RegistrationID: reg.RegistrationID,
		Amount:         amount,
		Currency:       models.CurrencyINR,
		Method:         models.PaymentMethodGateway,
		Status:         models.PaymentStatusPending,
		GatewayOrderID: order.ID,
	}); err != nil {
		s.logger.Error("payment_record_failed", "registration_id", reg.RegistrationID, "order_id", order.ID, "error", err)
	}
	s.logger.Info("payment_order_created", "registration_id", reg.RegistrationID, "order_id", order.ID, "amount", order.Amount)

	currency := order.Currency
	if currency == "" {
		currency = models.CurrencyINR
	}
	return OrderResult{
		OrderID:        order.ID,
		Amount:         order.Amount,
		Currency:       currency,
		KeyID:          s.gateway.KeyID(),
		RegistrationID: reg.RegistrationID,
	}, nil
}

// VerifyInput is the checkout callback payload.
type VerifyInput struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyGatewayPayment confirms a payment reported by the browser after
// checkout. The signature is checked before anything is read or written.
func (s *Service) VerifyGatewayPayment(ctx context.Context, in VerifyInput) (Result, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Signature = strings.TrimSpace(in.Signature)
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return Result{}, ErrMissingFields
	}
	if !razorpay.VerifyPaymentSignature(s.opts.KeySecret, in.OrderID, in.PaymentID, in.Signature) {
		s.logger.Warn("payment_signature_mismatch", "order_id", in.OrderID)
		return Result{}, ErrInvalidSignature
	}
	payment, err := s.store.GetPaymentByOrderID(ctx, in.OrderID)
	if err != nil {
		return Result{}, err
	}
	return s.Apply(ctx, Transition{
		Source:           SourceGatewaySync,
		Outcome:          models.PaymentStatusSuccess,
		RegistrationID:   payment.RegistrationID,
		Method:           models.PaymentMethodGateway,
		GatewayOrderID:   in.OrderID,
		GatewayPaymentID: in.PaymentID,
		GatewaySignature: in.Signature,
	})
}

// WebhookResult acknowledges a webhook delivery. Warning is set when the
// event was accepted but could not be applied.
type WebhookResult struct {
	Event          string `json:"event"`
	Handled        bool   `json:"handled"`
	RegistrationID string `json:"registrationId,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

// HandleWebhook authenticates and applies a gateway event. Only a bad
// signature, an unreadable body or a store failure produce an error; missing
// records are acknowledged with a warning so the gateway stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if !razorpay.VerifyWebhookSignature(s.opts.WebhookSecret, body, strings.TrimSpace(signature)) {
		s.logger.Warn("webhook_signature_mismatch")
		return WebhookResult{}, ErrInvalidSignature
	}
	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		return WebhookResult{}, err
	}
	out := WebhookResult{Event: event.Event}
	logger := s.logger.With("event", event.Event)

	var outcome, reason string
	switch event.Event {
	case razorpay.EventPaymentCaptured, razorpay.EventPaymentAuthorized:
		outcome = models.PaymentStatusSuccess
	case razorpay.EventPaymentFailed:
		outcome = models.PaymentStatusFailed
		reason = event.Payment().ErrorDescription
		if reason == "" {
			reason = defaultRejectReason
		}
	default:
		logger.Info("webhook_event_ignored")
		return out, nil
	}

	entity := event.Payment()
	registrationID, err := s.resolveWebhookRegistration(ctx, entity)
	if err != nil {
		return WebhookResult{}, err
	}
	if registrationID == "" {
		logger.Warn("webhook_payment_not_found", "order_id", entity.OrderID, "payment_id", entity.ID)
		out.Warning = "payment not found"
		return out, nil
	}
	out.RegistrationID = registrationID

	_, err = s.Apply(ctx, Transition{
		Source:           SourceWebhook,
		Outcome:          outcome,
		RegistrationID:   registrationID,
		Method:           models.PaymentMethodGateway,
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
		Reason:           reason,
	})
	switch {
	case errors.Is(err, repository.ErrRegistrationNotFound):
		logger.Warn("webhook_registration_not_found", "registration_id", registrationID)
		out.Warning = "registration not found"
		return out, nil
	case errors.Is(err, repository.ErrPaymentAlreadySettled):
		logger.Warn("webhook_failure_after_success", "registration_id", registrationID)
		out.Warning = "payment already succeeded"
		return out, nil
	case err != nil:
		return WebhookResult{}, err
	}
	out.Handled = true
	return out, nil
}

func (s *Service) resolveWebhookRegistration(ctx context.Context, entity razorpay.PaymentEntity) (string, error) {
	if entity.OrderID != "" {
		payment, err := s.store.GetPaymentByOrderID(ctx, entity.OrderID)
		if err == nil {
			return payment.RegistrationID, nil
		}
		if !errors.Is(err, repository.ErrPaymentNotFound) {
			return "", err
		}
	}
	return strings.TrimSpace(entity.Notes["registrationId"]), nil
}

// AdminVerifyInput is an admin decision on a registration's payment.
type AdminVerifyInput struct {
	RegistrationID string `json:"registrationId" validate:"required"`
	Action         string `json:"action" validate:"required"`
	PaymentMethod  string `json:"paymentMethod"`
	UPIID          string `json:"upiId" validate:"max=100"`
	TransactionID  string `json:"transactionId" validate:"max=100"`
	Notes          string `json:"notes" validate:"max=2000"`
	Reason         string `json:"reason" validate:"max=500"`
}

// AdminVerify approves or rejects a payment on an admin's word. A gateway
// decision updates the existing gateway payment; a manual one records the
// attested UPI details.
func (s *Service) AdminVerify(ctx context.Context, in AdminVerifyInput, adminEmail string) (Result, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if action != ActionApprove && action != ActionReject {
		return Result{}, ErrInvalidAction
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = models.PaymentMethodManual
	}
	if method != models.PaymentMethodManual && method != models.PaymentMethodGateway {
		return Result{}, ErrInvalidMethod
	}

	reg, err := s.store.GetRegistration(ctx, strings.TrimSpace(in.RegistrationID))
	if err != nil {
		return Result{}, err
	}
	t := Transition{
		Source:         SourceAdminManual,
		Outcome:        models.PaymentStatusSuccess,
		RegistrationID: reg.RegistrationID,
		Method:         method,
		Notes:          strings.TrimSpace(in.Notes),
		VerifiedBy:     adminEmail,
	}
	if method == models.PaymentMethodGateway {
		existing, err := s.store.GetPaymentByRegistrationID(ctx, reg.RegistrationID)
		if err != nil {
			return Result{}, err
		}
		t.GatewayOrderID = existing.GatewayOrderID
	} else {
		t.UPIID = strings.TrimSpace(in.UPIID)
		t.TransactionID = strings.TrimSpace(in.TransactionID)
	}
	if action == ActionReject {
		t.Outcome = models.PaymentStatusFailed
		t.Reason = strings.TrimSpace(in.Reason)
		if t.Reason == "" {
			t.Reason = defaultRejectReason
		}
	}
	return s.Apply(ctx, t)
}

// ResendTicket regenerates the QR of a paid registration and emails it again.
func (s *Service) ResendTicket(ctx context.Context, registrationID string) (models.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, strings.TrimSpace(registrationID))
	if err != nil {
		return models.Registration{}, err
	}
	if reg.PaymentStatus != models.PaymentStatusSuccess {
		return models.Registration{}, ErrNotPaid
	}
	png, dataURL, err := ticketing.IssueTicketQR(s.opts.AppURL, s.opts.SigningSecret, reg.RegistrationID)
	if err != nil {
		return models.Registration{}, fmt.Errorf("issue ticket qr: %w", err)
	}
	if _, err := s.store.SetRegistrationQRCode(ctx, reg.RegistrationID, dataURL, true); err != nil {
		return models.Registration{}, err
	}
	reg.QRCode = dataURL
	if s.notifier == nil {
		return reg, nil
	}
	if err := s.notifier.SendTicket(ctx, reg, png); err != nil {
		return reg, err
	}
	s.logger.Info("ticket_resent", "registration_id", reg.RegistrationID)
	return reg, nil
}
