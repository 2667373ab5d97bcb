package repository

import (
	"context"

	"conclave/backend/internal/models"
)

// RegistrationStats aggregates registration counts and collected revenue.
func (r *Repository) RegistrationStats(ctx context.Context) (models.RegistrationStats, error) {
	out := models.RegistrationStats{
		ByPaymentStatus: map[string]int{
			models.PaymentStatusPending: 0,
			models.PaymentStatusSuccess: 0,
			models.PaymentStatusFailed:  0,
		},
		ByTicketStatus: map[string]int{
			models.TicketStatusUnderReview: 0,
			models.TicketStatusActive:      0,
			models.TicketStatusExpired:     0,
			models.TicketStatusUsed:        0,
		},
	}

	rows, err := r.pool.Query(ctx, `
SELECT payment_status, ticket_status, count(*), COALESCE(sum(total_amount), 0), count(checked_in_at)
FROM registrations
GROUP BY payment_status, ticket_status;`)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var paymentStatus, ticketStatus string
		var count, checkedIn int
		var amount int64
		if err := rows.Scan(&paymentStatus, &ticketStatus, &count, &amount, &checkedIn); err != nil {
			return out, err
		}
		out.Total += count
		out.ByPaymentStatus[paymentStatus] += count
		out.ByTicketStatus[ticketStatus] += count
		out.CheckedIn += checkedIn
		if paymentStatus == models.PaymentStatusSuccess {
			out.Revenue += amount
		}
	}
	return out, rows.Err()
}

// ListPaidRegistrations returns every registration whose payment succeeded.
func (r *Repository) ListPaidRegistrations(ctx context.Context) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+registrationColumns+`
FROM registrations
WHERE payment_status = 'success'
ORDER BY created_at ASC;`)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}
