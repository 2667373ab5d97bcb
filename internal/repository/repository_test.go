package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"conclave/backend/internal/db"
	"conclave/backend/internal/models"
	"conclave/backend/internal/ticketing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func newTestRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return New(pool), pool
}

func insertTestRegistration(t *testing.T, repo *Repository, pool *pgxpool.Pool) models.Registration {
	t.Helper()
	ctx := context.Background()
	reg, err := repo.InsertRegistration(ctx, models.Registration{
		RegistrationID: ticketing.NewRegistrationID(time.Now()),
		Name:           "Test Attendee",
		Email:          "attendee@example.com",
		Phone:          "+910000000000",
		Category:       "member",
		People: []models.PersonTickets{
			{Name: "Test Attendee", PersonType: models.PersonTypeAdult, Tickets: []string{ticketing.TicketBusinessConclave}},
		},
		TotalAmount:   1000,
		PaymentStatus: models.PaymentStatusPending,
		TicketStatus:  models.TicketStatusUnderReview,
	})
	if err != nil {
		t.Fatalf("insert registration: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM payments WHERE registration_id = $1`, reg.RegistrationID)
		_, _ = pool.Exec(ctx, `DELETE FROM registrations WHERE registration_id = $1`, reg.RegistrationID)
	})
	return reg
}

func TestInsertRegistrationDuplicateID(t *testing.T) {
	repo, pool := newTestRepository(t)
	reg := insertTestRegistration(t, repo, pool)

	if len(reg.People) != 1 || reg.People[0].Tickets[0] != ticketing.TicketBusinessConclave {
		t.Fatalf("people not round-tripped: %+v", reg.People)
	}

	dup := reg
	dup.Email = "other@example.com"
	if _, err := repo.InsertRegistration(context.Background(), dup); !errors.Is(err, ErrDuplicateRegistrationID) {
		t.Fatalf("expected ErrDuplicateRegistrationID, got %v", err)
	}
}

func TestApplyPaymentOutcomeIsIdempotent(t *testing.T) {
	repo, pool := newTestRepository(t)
	reg := insertTestRegistration(t, repo, pool)
	ctx := context.Background()

	if _, err := repo.UpsertPayment(ctx, UpsertPaymentParams{
		RegistrationID: reg.RegistrationID,
		Amount:         reg.TotalAmount,
		Method:         models.PaymentMethodGateway,
		Status:         models.PaymentStatusPending,
		GatewayOrderID: "order_test_1",
	}); err != nil {
		t.Fatalf("upsert pending payment: %v", err)
	}

	params := PaymentOutcomeParams{Payment: UpsertPaymentParams{
		RegistrationID:   reg.RegistrationID,
		Method:           models.PaymentMethodGateway,
		Status:           models.PaymentStatusSuccess,
		GatewayPaymentID: "pay_test_1",
	}}
	first, err := repo.ApplyPaymentOutcome(ctx, params)
	if err != nil {
		t.Fatalf("first ApplyPaymentOutcome(): %v", err)
	}
	if !first.Changed() || first.Registration.TicketStatus != models.TicketStatusActive {
		t.Fatalf("unexpected first outcome: %+v", first)
	}
	if first.Payment.GatewayOrderID != "order_test_1" {
		t.Fatalf("gateway order id lost: %+v", first.Payment)
	}

	second, err := repo.ApplyPaymentOutcome(ctx, params)
	if err != nil {
		t.Fatalf("second ApplyPaymentOutcome(): %v", err)
	}
	if second.Changed() || second.Registration.TicketStatus != models.TicketStatusActive {
		t.Fatalf("unexpected second outcome: %+v", second)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM payments WHERE registration_id = $1`, reg.RegistrationID).Scan(&count); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one payment, got %d", count)
	}

	failed := params
	failed.Payment.Status = models.PaymentStatusFailed
	if _, err := repo.ApplyPaymentOutcome(ctx, failed); !errors.Is(err, ErrPaymentAlreadySettled) {
		t.Fatalf("expected ErrPaymentAlreadySettled, got %v", err)
	}

	if _, err := repo.CancelRegistration(ctx, reg.RegistrationID); err != nil {
		t.Fatalf("CancelRegistration(): %v", err)
	}
	replayed, err := repo.ApplyPaymentOutcome(ctx, params)
	if err != nil {
		t.Fatalf("replayed ApplyPaymentOutcome(): %v", err)
	}
	if replayed.Registration.TicketStatus != models.TicketStatusExpired {
		t.Fatalf("cancelled ticket revived: %q", replayed.Registration.TicketStatus)
	}
}

func TestSetRegistrationQRCodeKeepsExisting(t *testing.T) {
	repo, pool := newTestRepository(t)
	reg := insertTestRegistration(t, repo, pool)
	ctx := context.Background()

	written, err := repo.SetRegistrationQRCode(ctx, reg.RegistrationID, "data:image/png;base64,AAA", false)
	if err != nil || !written {
		t.Fatalf("first write: written=%v err=%v", written, err)
	}
	written, err = repo.SetRegistrationQRCode(ctx, reg.RegistrationID, "data:image/png;base64,BBB", false)
	if err != nil || written {
		t.Fatalf("second write must be skipped: written=%v err=%v", written, err)
	}
	got, err := repo.GetRegistration(ctx, reg.RegistrationID)
	if err != nil {
		t.Fatalf("GetRegistration(): %v", err)
	}
	if got.QRCode != "data:image/png;base64,AAA" {
		t.Fatalf("qr code overwritten: %s", got.QRCode)
	}
}

func TestInsertVisitorIfAbsentWindow(t *testing.T) {
	repo, pool := newTestRepository(t)
	ctx := context.Background()
	session := "session-" + ticketing.NewRegistrationID(time.Now())
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM visitors WHERE session_id = $1`, session)
	})

	visit := models.Visitor{IP: "10.0.0.1", UserAgent: "test", Page: "/", SessionID: session}
	now := time.Now()
	for i, want := range []bool{true, false} {
		inserted, err := repo.InsertVisitorIfAbsent(ctx, visit, now.Add(-5*time.Minute))
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if inserted != want {
			t.Fatalf("call %d: inserted=%v want %v", i, inserted, want)
		}
	}
	inserted, err := repo.InsertVisitorIfAbsent(ctx, visit, now.Add(time.Minute))
	if err != nil || !inserted {
		t.Fatalf("visit after window: inserted=%v err=%v", inserted, err)
	}
}

func TestSponsorRequestDecidedOnce(t *testing.T) {
	repo, pool := newTestRepository(t)
	ctx := context.Background()

	req, err := repo.CreateSponsorRequest(ctx, models.SponsorRequest{
		CompanyName:     "Acme",
		ContactName:     "Jordan",
		Email:           "jordan@acme.example",
		Phone:           "+910000000001",
		RequestedAmount: 50000,
	})
	if err != nil {
		t.Fatalf("CreateSponsorRequest(): %v", err)
	}

	approved, sponsor, err := repo.ApproveSponsorRequest(ctx, req.ID, 0)
	if err != nil {
		t.Fatalf("ApproveSponsorRequest(): %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM sponsor_requests WHERE id = $1::uuid`, req.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM sponsors WHERE id = $1::uuid`, sponsor.ID)
	})
	if approved.Status != models.SponsorRequestApproved || approved.SponsorID != sponsor.ID {
		t.Fatalf("unexpected approved request: %+v", approved)
	}

	if _, err := repo.RejectSponsorRequest(ctx, req.ID, "late"); !errors.Is(err, ErrSponsorRequestDecided) {
		t.Fatalf("expected ErrSponsorRequestDecided, got %v", err)
	}
	if _, err := repo.RejectSponsorRequest(ctx, "not-a-uuid", "x"); !errors.Is(err, ErrSponsorRequestNotFound) {
		t.Fatalf("expected ErrSponsorRequestNotFound, got %v", err)
	}
}
