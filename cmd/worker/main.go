package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conclave/backend/internal/config"
	"conclave/backend/internal/db"
	"conclave/backend/internal/logging"
	"conclave/backend/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging, "worker")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.New(pool)
	job := &expiryJob{
		store:   repo,
		endsAt:  cfg.Ticketing.EventEndsAt,
		now:     time.Now,
		logger:  logger,
		timeout: 30 * time.Second,
	}

	interval := cfg.Worker.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger.Info("worker_started", "interval", interval.String(), "event_ends_at", cfg.Ticketing.EventEndsAt)
	if cfg.Ticketing.EventEndsAt.IsZero() {
		logger.Warn("event_ends_at not set, tickets will not be expired")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job.run(ctx)
		select {
		case <-ctx.Done():
			logger.Info("shutdown", "service", "worker")
			return
		case <-ticker.C:
		}
	}
}

type ticketExpirer interface {
	ExpireTickets(ctx context.Context) (int64, error)
}

var _ ticketExpirer = (*repository.Repository)(nil)

// expiryJob marks every unused ticket expired once the event is over.
type expiryJob struct {
	store   ticketExpirer
	endsAt  time.Time
	now     func() time.Time
	logger  *slog.Logger
	timeout time.Duration
}

// run performs one pass and returns the number of tickets expired.
func (j *expiryJob) run(ctx context.Context) int64 {
	if j.endsAt.IsZero() || j.now().Before(j.endsAt) {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	count, err := j.store.ExpireTickets(ctx)
	if err != nil {
		j.logger.Error("expire_tickets_error", "error", err)
		return 0
	}
	if count > 0 {
		j.logger.Info("tickets_expired", "count", count)
	}
	return count
}
