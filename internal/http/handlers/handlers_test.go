package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"conclave/backend/internal/auth"
	"conclave/backend/internal/config"
	authmw "conclave/backend/internal/http/middleware"
	"conclave/backend/internal/integrations/razorpay"
	"conclave/backend/internal/mailer"
	"conclave/backend/internal/models"
	"conclave/backend/internal/payments"
	"conclave/backend/internal/registration"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/testutil"
	"conclave/backend/internal/ticketing"
	"conclave/backend/internal/visitors"

	"github.com/go-chi/chi/v5"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "s3cret-pass"
	testKeySecret     = "key_secret"
)

type stubGateway struct {
	mu    sync.Mutex
	count int
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

func (g *stubGateway) CreateOrder(ctx context.Context, in razorpay.OrderRequest) (razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	return razorpay.Order{ID: fmt.Sprintf("order_%d", g.count), Amount: in.Amount, Currency: in.Currency}, nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (s *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

type testEnv struct {
	store   *testutil.MemStore
	sender  *recordingSender
	handler *Handler
	router  chi.Router
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		AppURL: "https://conclave.example",
		Admin: config.AdminConfig{
			Email:         testAdminEmail,
			Password:      testAdminPassword,
			SessionSecret: "session-secret",
			SessionTTL:    time.Hour,
		},
		Razorpay:  config.RazorpayConfig{KeyID: "rzp_test_key", KeySecret: testKeySecret},
		Ticketing: config.TicketingConfig{SigningSecret: "qr-secret"},
	}
	store := testutil.NewMemStore()
	sender := &recordingSender{}
	mail := mailer.New(sender, mailer.Options{EventName: "Conclave", AppURL: cfg.AppURL, SigningSecret: cfg.Ticketing.SigningSecret}, logger)
	paymentsSvc := payments.NewService(store, &stubGateway{}, mail, payments.Options{
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecretOrKey(),
		AppURL:        cfg.AppURL,
		SigningSecret: cfg.Ticketing.SigningSecret,
	}, logger)
	h := New(Deps{
		Store:         store,
		Registrations: registration.NewService(store, logger),
		Payments:      paymentsSvc,
		Visitors:      visitors.NewTracker(store),
	}, cfg, logger)

	creds := auth.AdminCredentials{Email: cfg.Admin.Email, Password: cfg.Admin.Password}
	r := chi.NewRouter()
	r.Post("/registrations", h.CreateRegistration)
	r.Get("/registrations", h.ListRegistrationsByEmail)
	r.Post("/payments/create-order", h.CreatePaymentOrder)
	r.Post("/payments/verify", h.VerifyPayment)
	r.Post("/payments/webhook", h.PaymentWebhook)
	r.Post("/sponsor-requests", h.CreateSponsorRequest)
	r.Post("/track-visitor", h.TrackVisitor)
	r.Get("/tickets/verify/{ticketId}", h.VerifyTicket)
	r.Get("/settings", h.PublicSettings)
	r.Post("/admin/login", h.AdminLogin)
	r.Group(func(r chi.Router) {
		r.Use(authmw.AdminAuth(creds, cfg.Admin.SessionSecret, logger))
		r.Get("/admin/stats", h.AdminDashboardStats)
		r.Get("/admin/registrations", h.AdminListRegistrations)
		r.Get("/admin/registrations/export", h.AdminExportRegistrations)
		r.Get("/admin/registrations/{id}", h.AdminGetRegistration)
		r.Patch("/admin/registrations/{id}", h.AdminUpdateRegistration)
		r.Post("/admin/registrations/{id}/cancel", h.AdminCancelRegistration)
		r.Post("/admin/verify-payment-v2", h.AdminVerifyPayment)
		r.Post("/admin/tickets/check-in", h.CheckInTicket)
		r.Get("/admin/settings", h.AdminGetSettings)
		r.Put("/admin/settings", h.AdminUpdateSettings)
		r.Get("/admin/sponsor-requests", h.AdminListSponsorRequests)
		r.Post("/admin/sponsor-requests/{id}/approve", h.AdminApproveSponsorRequest)
		r.Post("/admin/sponsor-requests/{id}/reject", h.AdminRejectSponsorRequest)
	})
	return &testEnv{store: store, sender: sender, handler: h, router: r, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRegistrationToTicketFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/registrations", map[string]interface{}{
		"name":     "Asha Rao",
		"email":    "asha@example.com",
		"phone":    "9999999999",
		"category": "Member",
		"people": []map[string]interface{}{
			{"name": "Asha", "personType": "adult", "tickets": []string{ticketing.TicketBusinessConclave}},
		},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create registration status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		RegistrationID string `json:"registrationId"`
		TotalAmount    int64  `json:"totalAmount"`
	}
	decodeBody(t, rec, &created)
	if created.TotalAmount != 1000 {
		t.Fatalf("total = %d, want 1000", created.TotalAmount)
	}

	rec = env.do(t, http.MethodPost, "/payments/create-order", map[string]interface{}{
		"registrationId": created.RegistrationID,
		"amount":         1000,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create order status = %d body=%s", rec.Code, rec.Body.String())
	}
	var order payments.OrderResult
	decodeBody(t, rec, &order)
	if order.Amount != 100000 || order.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected order %+v", order)
	}

	verify := map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  razorpay.PaymentSignature(testKeySecret, order.OrderID, "pay_1"),
	}
	rec = env.do(t, http.MethodPost, "/payments/verify", verify, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d body=%s", rec.Code, rec.Body.String())
	}
	var verified struct {
		PaymentStatus string `json:"paymentStatus"`
		TicketStatus  string `json:"ticketStatus"`
		QRCode        string `json:"qrCode"`
	}
	decodeBody(t, rec, &verified)
	if verified.PaymentStatus != models.PaymentStatusSuccess || verified.TicketStatus != models.TicketStatusActive || verified.QRCode == "" {
		t.Fatalf("unexpected verify response %+v", verified)
	}

	if rec = env.do(t, http.MethodPost, "/payments/verify", verify, nil); rec.Code != http.StatusOK {
		t.Fatalf("repeat verify status = %d", rec.Code)
	}
	if len(env.sender.messages) != 1 {
		t.Fatalf("expected exactly one ticket email, got %d", len(env.sender.messages))
	}
	msg := env.sender.messages[0]
	if msg.To != "asha@example.com" || len(msg.Inline[ticketing.QRContentID]) == 0 {
		t.Fatalf("ticket email missing recipient or inline qr: %+v", msg.To)
	}
	if !strings.Contains(msg.HTML, "cid:"+ticketing.QRContentID) {
		t.Fatalf("ticket html does not reference the inline qr")
	}
}

func TestVerifyPaymentRejectsTamperedSignature(t *testing.T) {
	env := newTestEnv(t)
	good := razorpay.PaymentSignature(testKeySecret, "order_1", "pay_1")
	bad := "0" + good[1:]
	if bad == good {
		bad = "1" + good[1:]
	}

	rec := env.do(t, http.MethodPost, "/payments/verify", map[string]string{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  bad,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.store.CallCount("ApplyPaymentOutcome") != 0 {
		t.Fatalf("state mutated on bad signature")
	}
}

func TestPaymentWebhook(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutRegistration(models.Registration{
		RegistrationID: "REG-1",
		Email:          "asha@example.com",
		TotalAmount:    1000,
		PaymentStatus:  models.PaymentStatusPending,
		TicketStatus:   models.TicketStatusUnderReview,
	})
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_9","notes":{"registrationId":"REG-1"}}}}}`)

	rec := env.do(t, http.MethodPost, "/payments/webhook", body, map[string]string{
		"x-razorpay-signature": "bogus",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("bad signature status = %d, want 500", rec.Code)
	}
	malformed := []byte(`not json`)
	rec = env.do(t, http.MethodPost, "/payments/webhook", malformed, map[string]string{
		"x-razorpay-signature": razorpay.WebhookSignature(testKeySecret, malformed),
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("malformed body status = %d, want 500", rec.Code)
	}
	if env.store.CallCount("ApplyPaymentOutcome") != 0 {
		t.Fatalf("rejected webhook mutated state")
	}

	rec = env.do(t, http.MethodPost, "/payments/webhook", body, map[string]string{
		"x-razorpay-signature": razorpay.WebhookSignature(testKeySecret, body),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Handled bool   `json:"handled"`
		Warning string `json:"warning"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Handled || resp.Warning != "" {
		t.Fatalf("unexpected webhook response %s", rec.Body.String())
	}

	orphan := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_x"}}}}`)
	rec = env.do(t, http.MethodPost, "/payments/webhook", orphan, map[string]string{
		"x-razorpay-signature": razorpay.WebhookSignature(testKeySecret, orphan),
	})
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Warning == "" {
		t.Fatalf("orphan webhook should be acknowledged with a warning, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSponsorRequestRejectsLowAmountBeforeStore(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sponsor-requests", map[string]interface{}{
		"companyName":     "Acme",
		"contactName":     "Ravi",
		"email":           "ravi@acme.test",
		"phone":           "8888888888",
		"requestedAmount": 24000,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "25000") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if env.store.CallCount("GetSettings") != 0 || env.store.CallCount("CreateSponsorRequest") != 0 {
		t.Fatalf("store touched for a rejected amount")
	}
}

func TestCreateSponsorRequestRequiresFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sponsor-requests", map[string]interface{}{
		"companyName":     "Acme",
		"requestedAmount": 50000,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateRegistrationErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/registrations", []byte("{"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/registrations", map[string]interface{}{
		"name": "No Tickets", "email": "x@example.com", "phone": "1", "category": "Guest",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no tickets status = %d", rec.Code)
	}

	env.store.Settings.RegistrationOpen = false
	rec = env.do(t, http.MethodPost, "/registrations", map[string]interface{}{
		"name": "Late", "email": "late@example.com", "phone": "1", "category": "Guest",
		"ticketTypes": []string{ticketing.TicketAwardsNight},
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("closed registration status = %d", rec.Code)
	}
}

func TestTrackVisitorDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"page": "/", "sessionId": "sess-1"}

	var first, second struct {
		Tracked bool `json:"tracked"`
	}
	decodeBody(t, env.do(t, http.MethodPost, "/track-visitor", payload, nil), &first)
	decodeBody(t, env.do(t, http.MethodPost, "/track-visitor", payload, nil), &second)
	if !first.Tracked || second.Tracked {
		t.Fatalf("tracked = %v, %v; want true, false", first.Tracked, second.Tracked)
	}
	if len(env.store.Visitors) != 1 {
		t.Fatalf("stored visits = %d", len(env.store.Visitors))
	}
}

func TestAdminLoginIssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutRegistration(models.Registration{
		RegistrationID: "REG-7",
		Email:          "guest@example.com",
		TotalAmount:    500,
		PaymentStatus:  models.PaymentStatusPending,
		TicketStatus:   models.TicketStatusUnderReview,
	})

	rec := env.do(t, http.MethodPost, "/admin/login", map[string]string{"email": testAdminEmail, "password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/admin/login", map[string]string{"email": testAdminEmail, "password": testAdminPassword}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &login)

	rec = env.do(t, http.MethodPost, "/admin/verify-payment-v2", map[string]string{
		"registrationId": "REG-7",
		"action":         "approve",
		"paymentMethod":  "manual",
		"transactionId":  "UTR-7",
	}, map[string]string{"Authorization": "Bearer " + login.Token})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-payment-v2 status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := env.store.Payments["REG-7"].VerifiedBy; got != testAdminEmail {
		t.Fatalf("verified by = %q", got)
	}
}

func TestAdminVerifyPaymentRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutRegistration(models.Registration{
		RegistrationID: "REG-8",
		PaymentStatus:  models.PaymentStatusPending,
		TicketStatus:   models.TicketStatusUnderReview,
	})
	body := map[string]string{"registrationId": "REG-8", "action": "approve"}

	cases := []map[string]string{
		nil,
		{authmw.HeaderAdminEmail: testAdminEmail},
		{authmw.HeaderAdminEmail: testAdminEmail, authmw.HeaderAdminPassword: "nope"},
		{authmw.HeaderAdminEmail: "other@example.com", authmw.HeaderAdminPassword: testAdminPassword},
	}
	for i, headers := range cases {
		if rec := env.do(t, http.MethodPost, "/admin/verify-payment-v2", body, headers); rec.Code != http.StatusUnauthorized {
			t.Fatalf("case %d: status = %d, want 401", i, rec.Code)
		}
	}
	if env.store.CallCount("ApplyPaymentOutcome") != 0 {
		t.Fatalf("unauthorized request mutated state")
	}

	rec := env.do(t, http.MethodPost, "/admin/verify-payment-v2", body, map[string]string{
		authmw.HeaderAdminEmail:    testAdminEmail,
		authmw.HeaderAdminPassword: testAdminPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("authorized status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&registration.ValidationError{Field: "email", Message: "is required"}, http.StatusBadRequest},
		{registration.ErrRegistrationClosed, http.StatusForbidden},
		{repository.ErrRegistrationNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", repository.ErrPaymentNotFound), http.StatusNotFound},
		{repository.ErrSponsorRequestDecided, http.StatusConflict},
		{repository.ErrTicketNotActive, http.StatusConflict},
		{payments.ErrInvalidSignature, http.StatusBadRequest},
		{payments.ErrAmountMismatch, http.StatusBadRequest},
		{&razorpay.APIError{StatusCode: 401, Description: "auth failed"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := errorStatus(tc.err); got != tc.want {
			t.Fatalf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
