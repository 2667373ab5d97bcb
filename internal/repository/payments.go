package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conclave/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentAlreadySettled = errors.New("payment already succeeded")
)

const paymentColumns = `id::text, registration_id, amount, currency, method, status,
	COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
	COALESCE(upi_id, ''), COALESCE(transaction_id, ''), COALESCE(verified_by, ''), verified_at,
	COALESCE(notes, ''), COALESCE(failure_reason, ''), created_at, updated_at`

// UpsertPaymentParams describes the payment row for one registration. Empty
// gateway identifiers keep the values already stored.
type UpsertPaymentParams struct {
	RegistrationID   string
	Amount           int64
	Currency         string
	Method           string
	Status           string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	UPIID            string
	TransactionID    string
	VerifiedBy       string
	Notes            string
	FailureReason    string
}

// PaymentOutcomeParams settles a registration's payment.
type PaymentOutcomeParams struct {
	Payment UpsertPaymentParams
	// AllowDowngrade lets a failure overwrite a payment that already succeeded.
	AllowDowngrade bool
}

// PaymentOutcome is the state after a settled payment. PreviousStatus is the
// registration's payment status before the change.
type PaymentOutcome struct {
	Registration   models.Registration
	Payment        models.Payment
	PreviousStatus string
}

// Changed reports whether the registration moved to a new payment status.
func (o PaymentOutcome) Changed() bool {
	return o.PreviousStatus != o.Registration.PaymentStatus
}

// UpsertPayment writes the single payment of a registration.
func (r *Repository) UpsertPayment(ctx context.Context, params UpsertPaymentParams) (models.Payment, error) {
	return upsertPayment(ctx, r.pool, params)
}

func upsertPayment(ctx context.Context, q queryRunner, params UpsertPaymentParams) (models.Payment, error) {
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = models.CurrencyINR
	}
	row := q.QueryRow(ctx, `
INSERT INTO payments (
	registration_id, amount, currency, method, status, gateway_order_id, gateway_payment_id,
	gateway_signature, upi_id, transaction_id, verified_by, verified_at, notes, failure_reason
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
	CASE WHEN $11::text IS NULL THEN NULL ELSE now() END, $12, $13
)
ON CONFLICT (registration_id)
DO UPDATE SET
	amount = EXCLUDED.amount,
	currency = EXCLUDED.currency,
	method = EXCLUDED.method,
	status = EXCLUDED.status,
	gateway_order_id = COALESCE(EXCLUDED.gateway_order_id, payments.gateway_order_id),
	gateway_payment_id = COALESCE(EXCLUDED.gateway_payment_id, payments.gateway_payment_id),
	gateway_signature = COALESCE(EXCLUDED.gateway_signature, payments.gateway_signature),
	upi_id = COALESCE(EXCLUDED.upi_id, payments.upi_id),
	transaction_id = COALESCE(EXCLUDED.transaction_id, payments.transaction_id),
	verified_by = COALESCE(EXCLUDED.verified_by, payments.verified_by),
	verified_at = COALESCE(EXCLUDED.verified_at, payments.verified_at),
	notes = COALESCE(EXCLUDED.notes, payments.notes),
	failure_reason = EXCLUDED.failure_reason,
	updated_at = now()
RETURNING `+paymentColumns+`;`,
		strings.TrimSpace(params.RegistrationID),
		params.Amount,
		currency,
		params.Method,
		params.Status,
		nullString(params.GatewayOrderID),
		nullString(params.GatewayPaymentID),
		nullString(params.GatewaySignature),
		nullString(params.UPIID),
		nullString(params.TransactionID),
		nullString(params.VerifiedBy),
		nullString(params.Notes),
		nullString(params.FailureReason),
	)
	return scanPayment(row)
}

// ApplyPaymentOutcome writes the payment and the registration's payment and
// ticket status in one transaction. The registration row lock serialises
// concurrent confirmations of the same registration.
func (r *Repository) ApplyPaymentOutcome(ctx context.Context, params PaymentOutcomeParams) (PaymentOutcome, error) {
	var out PaymentOutcome
	status := params.Payment.Status
	if status != models.PaymentStatusSuccess && status != models.PaymentStatusFailed {
		return out, fmt.Errorf("unsupported payment outcome %q", status)
	}
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := getRegistration(ctx, tx, params.Payment.RegistrationID, true)
		if err != nil {
			return err
		}
		if status == models.PaymentStatusFailed && current.PaymentStatus == models.PaymentStatusSuccess && !params.AllowDowngrade {
			return ErrPaymentAlreadySettled
		}
		paymentParams := params.Payment
		paymentParams.RegistrationID = current.RegistrationID
		if paymentParams.Amount == 0 {
			paymentParams.Amount = current.TotalAmount
		}
		payment, err := upsertPayment(ctx, tx, paymentParams)
		if err != nil {
			return err
		}
		reg, err := scanRegistration(tx.QueryRow(ctx, `
UPDATE registrations
SET payment_status = $2,
	ticket_status = CASE
		WHEN $2 = 'success' AND ticket_status = 'under_review' THEN 'active'
		WHEN $2 = 'failed' AND ticket_status = 'active' THEN 'under_review'
		ELSE ticket_status
	END,
	updated_at = now()
WHERE registration_id = $1
RETURNING `+registrationColumns+`;`, current.RegistrationID, status))
		if err != nil {
			return err
		}
		out = PaymentOutcome{Registration: reg, Payment: payment, PreviousStatus: current.PaymentStatus}
		return nil
	})
	return out, err
}

func (r *Repository) GetPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE gateway_order_id = $1
ORDER BY updated_at DESC
LIMIT 1;`, strings.TrimSpace(orderID))
	out, err := scanPayment(row)
	if err != nil {
		return models.Payment{}, notFound(err, ErrPaymentNotFound)
	}
	return out, nil
}

func (r *Repository) GetPaymentByRegistrationID(ctx context.Context, registrationID string) (models.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE registration_id = $1;`, strings.TrimSpace(registrationID))
	out, err := scanPayment(row)
	if err != nil {
		return models.Payment{}, notFound(err, ErrPaymentNotFound)
	}
	return out, nil
}

func (r *Repository) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
SELECT count(*)
FROM payments
WHERE ($1::text IS NULL OR status = $1)
	AND ($2::text IS NULL OR method = $2);`, nullString(filter.Status), nullString(filter.Method)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE ($1::text IS NULL OR status = $1)
	AND ($2::text IS NULL OR method = $2)
ORDER BY updated_at DESC
LIMIT $3 OFFSET $4;`, nullString(filter.Status), nullString(filter.Method), clampLimit(filter.Limit, 50, 500), clampOffset(filter.Offset))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]models.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, payment)
	}
	return items, total, rows.Err()
}

func scanPayment(row pgx.Row) (models.Payment, error) {
	var out models.Payment
	var verifiedAt *time.Time
	err := row.Scan(
		&out.ID,
		&out.RegistrationID,
		&out.Amount,
		&out.Currency,
		&out.Method,
		&out.Status,
		&out.GatewayOrderID,
		&out.GatewayPaymentID,
		&out.GatewaySignature,
		&out.UPIID,
		&out.TransactionID,
		&out.VerifiedBy,
		&verifiedAt,
		&out.Notes,
		&out.FailureReason,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return models.Payment{}, err
	}
	out.VerifiedAt = verifiedAt
	return out, nil
}
