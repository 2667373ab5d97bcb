package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"conclave/backend/internal/models"
	"conclave/backend/internal/testutil"
)

type fakeExpirer struct {
	calls int
	count int64
	err   error
}

func (f *fakeExpirer) ExpireTickets(ctx context.Context) (int64, error) {
	f.calls++
	return f.count, f.err
}

func newTestJob(store ticketExpirer, endsAt, now time.Time) *expiryJob {
	return &expiryJob{
		store:   store,
		endsAt:  endsAt,
		now:     func() time.Time { return now },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: time.Second,
	}
}

func TestExpiryJobWaitsForEventEnd(t *testing.T) {
	store := &fakeExpirer{count: 3}
	endsAt := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)

	job := newTestJob(store, endsAt, endsAt.Add(-time.Minute))
	if got := job.run(context.Background()); got != 0 || store.calls != 0 {
		t.Fatalf("run before end = %d (calls %d), want no-op", got, store.calls)
	}

	job = newTestJob(store, endsAt, endsAt.Add(time.Minute))
	if got := job.run(context.Background()); got != 3 || store.calls != 1 {
		t.Fatalf("run after end = %d (calls %d), want 3", got, store.calls)
	}
}

func TestExpiryJobSkipsWithoutEndTime(t *testing.T) {
	store := &fakeExpirer{count: 1}
	job := newTestJob(store, time.Time{}, time.Now())
	if got := job.run(context.Background()); got != 0 || store.calls != 0 {
		t.Fatalf("expected no-op without end time")
	}
}

func TestExpiryJobLogsStoreErrors(t *testing.T) {
	store := &fakeExpirer{err: errors.New("db down")}
	endsAt := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	job := newTestJob(store, endsAt, endsAt.Add(time.Hour))
	if got := job.run(context.Background()); got != 0 || store.calls != 1 {
		t.Fatalf("run = %d (calls %d)", got, store.calls)
	}
}

func TestExpiryJobLeavesUsedTickets(t *testing.T) {
	store := testutil.NewMemStore()
	for id, status := range map[string]string{
		"REG-A": models.TicketStatusActive,
		"REG-B": models.TicketStatusUnderReview,
		"REG-C": models.TicketStatusUsed,
	} {
		store.PutRegistration(models.Registration{RegistrationID: id, TicketStatus: status})
	}
	endsAt := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	job := newTestJob(store, endsAt, endsAt.Add(time.Hour))
	if got := job.run(context.Background()); got != 2 {
		t.Fatalf("run = %d, want 2", got)
	}
	if got := store.Registrations["REG-C"].TicketStatus; got != models.TicketStatusUsed {
		t.Fatalf("used ticket changed to %q", got)
	}
	if got := store.Registrations["REG-A"].TicketStatus; got != models.TicketStatusExpired {
		t.Fatalf("active ticket = %q, want expired", got)
	}
}
