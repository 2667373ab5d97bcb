package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"conclave/backend/internal/integrations/razorpay"
	"conclave/backend/internal/models"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/testutil"
	"conclave/backend/internal/ticketing"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []razorpay.OrderRequest
	err      error
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(ctx context.Context, in razorpay.OrderRequest) (razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return razorpay.Order{}, g.err
	}
	g.requests = append(g.requests, in)
	return razorpay.Order{
		ID:       fmt.Sprintf("order_%d", len(g.requests)),
		Amount:   in.Amount,
		Currency: in.Currency,
		Receipt:  in.Receipt,
		Status:   "created",
	}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	tickets  []string
	rejected []string
	reasons  []string
	err      error
}

func (n *recordingNotifier) SendTicket(ctx context.Context, reg models.Registration, qrPNG []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(qrPNG) == 0 {
		return errors.New("empty qr")
	}
	n.tickets = append(n.tickets, reg.RegistrationID)
	return n.err
}

func (n *recordingNotifier) SendPaymentRejected(ctx context.Context, reg models.Registration, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, reg.RegistrationID)
	n.reasons = append(n.reasons, reason)
	return n.err
}

type fixture struct {
	store    *testutil.MemStore
	gateway  *fakeGateway
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewMemStore(),
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.store, f.gateway, f.notifier, Options{
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		AppURL:        "https://conclave.example",
		SigningSecret: "qr-secret",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) seedRegistration(id string, total int64) {
	f.store.PutRegistration(models.Registration{
		RegistrationID: id,
		Name:           "Asha",
		Email:          "asha@example.com",
		Phone:          "9999999999",
		Category:       "Member",
		People: []models.PersonTickets{
			{PersonType: models.PersonTypeAdult, Tickets: []string{ticketing.TicketBusinessConclave}},
		},
		TotalAmount:   total,
		PaymentStatus: models.PaymentStatusPending,
		TicketStatus:  models.TicketStatusUnderReview,
	})
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateOrderThenVerifyActivatesTicketOnce(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, OrderInput{RegistrationID: "REG-1", Amount: int64Ptr(1000)})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Amount != 100000 || order.Currency != models.CurrencyINR || order.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected order %+v", order)
	}
	if f.gateway.requests[0].Notes["registrationId"] != "REG-1" || f.gateway.requests[0].Receipt != "REG-1" {
		t.Fatalf("order request missing registration reference: %+v", f.gateway.requests[0])
	}
	pending, err := f.store.GetPaymentByRegistrationID(ctx, "REG-1")
	if err != nil || pending.Status != models.PaymentStatusPending || pending.GatewayOrderID != order.OrderID {
		t.Fatalf("pending payment not recorded: %+v %v", pending, err)
	}

	verify := VerifyInput{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: razorpay.PaymentSignature(testKeySecret, order.OrderID, "pay_1"),
	}
	result, err := f.svc.VerifyGatewayPayment(ctx, verify)
	if err != nil {
		t.Fatalf("VerifyGatewayPayment() error = %v", err)
	}
	reg := result.Registration
	if reg.PaymentStatus != models.PaymentStatusSuccess || reg.TicketStatus != models.TicketStatusActive {
		t.Fatalf("unexpected statuses %q/%q", reg.PaymentStatus, reg.TicketStatus)
	}
	if reg.QRCode == "" {
		t.Fatalf("expected qr code to be issued")
	}
	if !result.Changed || !result.EmailSent {
		t.Fatalf("expected changed transition with email, got %+v", result)
	}

	again, err := f.svc.VerifyGatewayPayment(ctx, verify)
	if err != nil {
		t.Fatalf("second VerifyGatewayPayment() error = %v", err)
	}
	if again.Changed || again.EmailSent {
		t.Fatalf("repeat confirmation should be a no-op, got %+v", again)
	}
	if again.Registration.TicketStatus != models.TicketStatusActive {
		t.Fatalf("ticket status = %q", again.Registration.TicketStatus)
	}
	if len(f.notifier.tickets) != 1 {
		t.Fatalf("expected exactly one ticket email, got %d", len(f.notifier.tickets))
	}
	if len(f.store.Payments) != 1 {
		t.Fatalf("expected one payment record, got %d", len(f.store.Payments))
	}
	stored := f.store.Payments["REG-1"]
	if stored.GatewayOrderID != order.OrderID || stored.GatewayPaymentID != "pay_1" || stored.Amount != 1000 {
		t.Fatalf("unexpected stored payment %+v", stored)
	}
	if current := f.store.Registrations["REG-1"]; current.QRCode != reg.QRCode {
		t.Fatalf("qr code should be kept across confirmations")
	}
}

func TestVerifyRejectsTamperedSignatureWithoutMutation(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	good := razorpay.PaymentSignature(testKeySecret, "order_1", "pay_1")

	for i := 0; i < len(good); i++ {
		mutated := []byte(good)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		_, err := f.svc.VerifyGatewayPayment(context.Background(), VerifyInput{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: string(mutated),
		})
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("position %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}
	if f.store.CallCount("GetPaymentByOrderID") != 0 || f.store.CallCount("ApplyPaymentOutcome") != 0 {
		t.Fatalf("store touched on bad signature")
	}
	if f.store.Registrations["REG-1"].PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("registration mutated")
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyGatewayPayment(context.Background(), VerifyInput{
		OrderID:   "order_x",
		PaymentID: "pay_x",
		Signature: razorpay.PaymentSignature(testKeySecret, "order_x", "pay_x"),
	})
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	f.seedRegistration("REG-FREE", 0)
	ctx := context.Background()

	if _, err := f.svc.CreateOrder(ctx, OrderInput{RegistrationID: "REG-1", Amount: int64Ptr(999)}); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, OrderInput{RegistrationID: "REG-1", Amount: int64Ptr(-5)}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, OrderInput{RegistrationID: "REG-FREE"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for free registration, got %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, OrderInput{RegistrationID: "REG-404"}); !errors.Is(err, repository.ErrRegistrationNotFound) {
		t.Fatalf("expected ErrRegistrationNotFound, got %v", err)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatalf("gateway should not be called")
	}
}

func TestCreateOrderRejectsPaidRegistration(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	reg := f.store.Registrations["REG-1"]
	reg.PaymentStatus = models.PaymentStatusSuccess
	f.store.PutRegistration(reg)

	if _, err := f.svc.CreateOrder(context.Background(), OrderInput{RegistrationID: "REG-1"}); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	f.gateway.err = &razorpay.APIError{StatusCode: 400, Description: "bad request"}

	if _, err := f.svc.CreateOrder(context.Background(), OrderInput{RegistrationID: "REG-1"}); err == nil {
		t.Fatalf("expected gateway error")
	}
	if f.store.CallCount("UpsertPayment") != 0 {
		t.Fatalf("payment should not be recorded without an order")
	}
}

func webhookBody(event, orderID, paymentID, registrationID, reason string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":100000,"currency":"INR","notes":{"registrationId":%q},"error_description":%q}}}}`,
		event, paymentID, orderID, registrationID, reason))
}

func (f *fixture) deliver(t *testing.T, body []byte) (WebhookResult, error) {
	t.Helper()
	return f.svc.HandleWebhook(context.Background(), body, razorpay.WebhookSignature(testWebhookSecret, body))
}

func TestWebhookCapturedConfirmsPayment(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	if _, err := f.svc.CreateOrder(context.Background(), OrderInput{RegistrationID: "REG-1"}); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	res, err := f.deliver(t, webhookBody(razorpay.EventPaymentCaptured, "order_1", "pay_1", "", ""))
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if !res.Handled || res.RegistrationID != "REG-1" || res.Warning != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.store.Registrations["REG-1"].TicketStatus != models.TicketStatusActive {
		t.Fatalf("ticket not activated")
	}

	// Redelivery is acknowledged without a second email.
	if _, err := f.deliver(t, webhookBody(razorpay.EventPaymentAuthorized, "order_1", "pay_1", "", "")); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if len(f.notifier.tickets) != 1 {
		t.Fatalf("expected one ticket email, got %d", len(f.notifier.tickets))
	}
}

func TestReplayedConfirmationKeepsExpiredTicket(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, OrderInput{RegistrationID: "REG-1"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	captured := webhookBody(razorpay.EventPaymentCaptured, order.OrderID, "pay_1", "", "")
	if _, err := f.deliver(t, captured); err != nil {
		t.Fatalf("captured error = %v", err)
	}

	reg := f.store.Registrations["REG-1"]
	reg.TicketStatus = models.TicketStatusExpired
	f.store.Registrations["REG-1"] = reg

	if _, err := f.deliver(t, captured); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if got := f.store.Registrations["REG-1"].TicketStatus; got != models.TicketStatusExpired {
		t.Fatalf("ticket status after webhook redelivery = %q", got)
	}

	verify := VerifyInput{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: razorpay.PaymentSignature(testKeySecret, order.OrderID, "pay_1"),
	}
	if _, err := f.svc.VerifyGatewayPayment(ctx, verify); err != nil {
		t.Fatalf("VerifyGatewayPayment() error = %v", err)
	}
	if got := f.store.Registrations["REG-1"].TicketStatus; got != models.TicketStatusExpired {
		t.Fatalf("ticket status after verify replay = %q", got)
	}
	if len(f.notifier.tickets) != 1 {
		t.Fatalf("expected one ticket email, got %d", len(f.notifier.tickets))
	}
}

func TestWebhookFallsBackToNotes(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-2", 1500)

	res, err := f.deliver(t, webhookBody(razorpay.EventPaymentCaptured, "order_unknown", "pay_2", "REG-2", ""))
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if !res.Handled || res.RegistrationID != "REG-2" {
		t.Fatalf("unexpected result %+v", res)
	}
	if p := f.store.Payments["REG-2"]; p.GatewayOrderID != "order_unknown" || p.Status != models.PaymentStatusSuccess {
		t.Fatalf("unexpected payment %+v", p)
	}
}

func TestWebhookMissingRecordsAreAcknowledged(t *testing.T) {
	f := newFixture(t)

	res, err := f.deliver(t, webhookBody(razorpay.EventPaymentCaptured, "order_x", "pay_x", "", ""))
	if err != nil || res.Warning == "" || res.Handled {
		t.Fatalf("expected warning without error, got %+v %v", res, err)
	}
	res, err = f.deliver(t, webhookBody(razorpay.EventPaymentCaptured, "order_x", "pay_x", "REG-GONE", ""))
	if err != nil || res.Warning != "registration not found" {
		t.Fatalf("expected registration warning, got %+v %v", res, err)
	}
}

func TestWebhookFailureDoesNotDowngradeSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	if _, err := f.deliver(t, webhookBody(razorpay.EventPaymentCaptured, "", "pay_1", "REG-1", "")); err != nil {
		t.Fatalf("captured error = %v", err)
	}

	res, err := f.deliver(t, webhookBody(razorpay.EventPaymentFailed, "", "pay_1", "REG-1", "card declined"))
	if err != nil {
		t.Fatalf("failed event error = %v", err)
	}
	if res.Handled || res.Warning == "" {
		t.Fatalf("expected ignored failure, got %+v", res)
	}
	if f.store.Registrations["REG-1"].PaymentStatus != models.PaymentStatusSuccess {
		t.Fatalf("registration downgraded")
	}
	if len(f.notifier.rejected) != 0 {
		t.Fatalf("no rejection email expected")
	}
}

func TestWebhookFailureRejectsPending(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)

	if _, err := f.deliver(t, webhookBody(razorpay.EventPaymentFailed, "", "pay_1", "REG-1", "card declined")); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if f.store.Registrations["REG-1"].PaymentStatus != models.PaymentStatusFailed {
		t.Fatalf("expected failed registration")
	}
	if p := f.store.Payments["REG-1"]; p.FailureReason != "card declined" {
		t.Fatalf("failure reason = %q", p.FailureReason)
	}
	if len(f.notifier.reasons) != 1 || f.notifier.reasons[0] != "card declined" {
		t.Fatalf("unexpected rejection emails %v", f.notifier.reasons)
	}
}

func TestWebhookRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	body := webhookBody(razorpay.EventPaymentCaptured, "order_1", "pay_1", "", "")

	if _, err := f.svc.HandleWebhook(context.Background(), body, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	garbage := []byte("{not json")
	if _, err := f.deliver(t, garbage); !errors.Is(err, razorpay.ErrMalformedWebhook) {
		t.Fatalf("expected ErrMalformedWebhook, got %v", err)
	}
	res, err := f.deliver(t, []byte(`{"event":"refund.created","payload":{}}`))
	if err != nil || res.Handled {
		t.Fatalf("unknown events are acknowledged, got %+v %v", res, err)
	}
}

func TestWebhookSecretFallsBackToKeySecret(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewService(store, &fakeGateway{}, &recordingNotifier{}, Options{KeySecret: testKeySecret}, nil)
	body := []byte(`{"event":"refund.created","payload":{}}`)

	if _, err := svc.HandleWebhook(context.Background(), body, razorpay.WebhookSignature(testKeySecret, body)); err != nil {
		t.Fatalf("expected key secret to verify webhooks, got %v", err)
	}
}

func TestAdminVerifyManualApproveAndReject(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	ctx := context.Background()

	res, err := f.svc.AdminVerify(ctx, AdminVerifyInput{
		RegistrationID: "REG-1",
		Action:         "approve",
		PaymentMethod:  "manual",
		UPIID:          "asha@upi",
		TransactionID:  "UTR123",
		Notes:          "screenshot checked",
	}, "admin@example.com")
	if err != nil {
		t.Fatalf("AdminVerify() error = %v", err)
	}
	if res.Payment.Method != models.PaymentMethodManual || res.Payment.UPIID != "asha@upi" || res.Payment.VerifiedBy != "admin@example.com" {
		t.Fatalf("unexpected payment %+v", res.Payment)
	}
	if !res.EmailSent || res.Registration.TicketStatus != models.TicketStatusActive {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = f.svc.AdminVerify(ctx, AdminVerifyInput{RegistrationID: "REG-1", Action: "reject"}, "admin@example.com")
	if err != nil {
		t.Fatalf("reject error = %v", err)
	}
	if res.Registration.PaymentStatus != models.PaymentStatusFailed || res.Registration.TicketStatus != models.TicketStatusUnderReview {
		t.Fatalf("unexpected statuses %q/%q", res.Registration.PaymentStatus, res.Registration.TicketStatus)
	}
	if len(f.notifier.reasons) != 1 || f.notifier.reasons[0] != defaultRejectReason {
		t.Fatalf("unexpected rejection emails %v", f.notifier.reasons)
	}
}

func TestAdminVerifyGatewayRequiresPayment(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)

	_, err := f.svc.AdminVerify(context.Background(), AdminVerifyInput{
		RegistrationID: "REG-1",
		Action:         "approve",
		PaymentMethod:  "gateway",
	}, "admin@example.com")
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestAdminVerifyRejectsUnknownAction(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)

	if _, err := f.svc.AdminVerify(context.Background(), AdminVerifyInput{RegistrationID: "REG-1", Action: "maybe"}, ""); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if _, err := f.svc.AdminVerify(context.Background(), AdminVerifyInput{RegistrationID: "REG-1", Action: "approve", PaymentMethod: "cash"}, ""); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestMailFailureDoesNotAbortTransition(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	f.notifier.err = errors.New("smtp down")

	res, err := f.svc.AdminVerify(context.Background(), AdminVerifyInput{RegistrationID: "REG-1", Action: "approve"}, "admin@example.com")
	if err != nil {
		t.Fatalf("AdminVerify() error = %v", err)
	}
	if res.EmailSent {
		t.Fatalf("email should be reported as not sent")
	}
	if f.store.Registrations["REG-1"].PaymentStatus != models.PaymentStatusSuccess {
		t.Fatalf("transition should persist despite mail failure")
	}
}

func TestResendTicketOverwritesQR(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)
	reg := f.store.Registrations["REG-1"]
	reg.PaymentStatus = models.PaymentStatusSuccess
	reg.TicketStatus = models.TicketStatusActive
	reg.QRCode = "data:image/png;base64,AAAA"
	f.store.PutRegistration(reg)

	out, err := f.svc.ResendTicket(context.Background(), "REG-1")
	if err != nil {
		t.Fatalf("ResendTicket() error = %v", err)
	}
	if out.QRCode == reg.QRCode || f.store.Registrations["REG-1"].QRCode != out.QRCode {
		t.Fatalf("expected regenerated qr code")
	}
	if len(f.notifier.tickets) != 1 {
		t.Fatalf("expected one ticket email")
	}
}

func TestResendTicketRequiresPayment(t *testing.T) {
	f := newFixture(t)
	f.seedRegistration("REG-1", 1000)

	if _, err := f.svc.ResendTicket(context.Background(), "REG-1"); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
}
