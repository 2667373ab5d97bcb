package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"conclave/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrRegistrationNotFound    = errors.New("registration not found")
	ErrDuplicateRegistrationID = errors.New("registration id already exists")
	ErrTicketNotActive         = errors.New("ticket is not active")
	ErrInvalidTicketStatus     = errors.New("invalid ticket status")
)

const registrationColumns = `id::text, registration_id, name, email, phone, category,
	COALESCE(organization, ''), COALESCE(city, ''), is_guest, people, ticket_types, total_amount,
	payment_status, ticket_status, COALESCE(qr_code, ''), checked_in_at, created_at, updated_at`

// InsertRegistration stores a new registration. A clash on the human-readable
// identifier is reported as ErrDuplicateRegistrationID so the caller can retry.
func (r *Repository) InsertRegistration(ctx context.Context, reg models.Registration) (models.Registration, error) {
	people, err := marshalPeople(reg.People)
	if err != nil {
		return models.Registration{}, err
	}
	ticketTypes := reg.TicketTypes
	if ticketTypes == nil {
		ticketTypes = []string{}
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO registrations (
	registration_id, name, email, phone, category, organization, city,
	is_guest, people, ticket_types, total_amount, payment_status, ticket_status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+registrationColumns+`;`,
		reg.RegistrationID,
		strings.TrimSpace(reg.Name),
		strings.TrimSpace(reg.Email),
		strings.TrimSpace(reg.Phone),
		strings.TrimSpace(reg.Category),
		nullString(reg.Organization),
		nullString(reg.City),
		reg.IsGuest,
		people,
		ticketTypes,
		reg.TotalAmount,
		reg.PaymentStatus,
		reg.TicketStatus,
	)
	out, err := scanRegistration(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Registration{}, ErrDuplicateRegistrationID
		}
		return models.Registration{}, err
	}
	return out, nil
}

func (r *Repository) GetRegistration(ctx context.Context, registrationID string) (models.Registration, error) {
	return getRegistration(ctx, r.pool, registrationID, false)
}

func getRegistration(ctx context.Context, q queryRunner, registrationID string, forUpdate bool) (models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE registration_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	out, err := scanRegistration(q.QueryRow(ctx, query+";", strings.TrimSpace(registrationID)))
	if err != nil {
		return models.Registration{}, notFound(err, ErrRegistrationNotFound)
	}
	return out, nil
}

func (r *Repository) ListRegistrationsByEmail(ctx context.Context, email string) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+registrationColumns+`
FROM registrations
WHERE lower(email) = lower($1)
ORDER BY created_at DESC;`, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// ListRegistrations returns one page of registrations and the total match count.
func (r *Repository) ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	where, args := registrationFilterSQL(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM registrations`+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, clampLimit(filter.Limit, 50, 500), clampOffset(filter.Offset))
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM registrations%s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d;`, registrationColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectRegistrations(rows)
	return items, total, err
}

func registrationFilterSQL(filter models.RegistrationFilter) (string, []interface{}) {
	clauses := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if v := strings.TrimSpace(filter.PaymentStatus); v != "" {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if v := strings.TrimSpace(filter.TicketStatus); v != "" {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("ticket_status = $%d", len(args)))
	}
	if v := strings.TrimSpace(filter.Search); v != "" {
		args = append(args, "%"+v+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d OR registration_id ILIKE $%d)", n, n, n, n))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "\nWHERE " + strings.Join(clauses, " AND "), args
}

// UpdateRegistration applies an admin patch. Payment status is owned by the
// payment flow and cannot be edited here.
func (r *Repository) UpdateRegistration(ctx context.Context, registrationID string, patch models.RegistrationPatch) (models.Registration, error) {
	if patch.TicketStatus != nil && !validTicketStatus(*patch.TicketStatus) {
		return models.Registration{}, ErrInvalidTicketStatus
	}
	row := r.pool.QueryRow(ctx, `
UPDATE registrations
SET name = COALESCE($2, name),
	email = COALESCE($3, email),
	phone = COALESCE($4, phone),
	category = COALESCE($5, category),
	organization = COALESCE($6, organization),
	city = COALESCE($7, city),
	ticket_status = COALESCE($8, ticket_status),
	updated_at = now()
WHERE registration_id = $1
RETURNING `+registrationColumns+`;`,
		strings.TrimSpace(registrationID),
		trimmedPtr(patch.Name),
		trimmedPtr(patch.Email),
		trimmedPtr(patch.Phone),
		trimmedPtr(patch.Category),
		trimmedPtr(patch.Organization),
		trimmedPtr(patch.City),
		trimmedPtr(patch.TicketStatus),
	)
	out, err := scanRegistration(row)
	if err != nil {
		return models.Registration{}, notFound(err, ErrRegistrationNotFound)
	}
	return out, nil
}

// CancelRegistration expires the ticket; registrations are never deleted.
func (r *Repository) CancelRegistration(ctx context.Context, registrationID string) (models.Registration, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE registrations
SET ticket_status = 'expired',
	updated_at = now()
WHERE registration_id = $1
RETURNING `+registrationColumns+`;`, strings.TrimSpace(registrationID))
	out, err := scanRegistration(row)
	if err != nil {
		return models.Registration{}, notFound(err, ErrRegistrationNotFound)
	}
	return out, nil
}

// SetRegistrationQRCode stores the ticket QR. Without overwrite an existing
// code is kept and false is returned.
func (r *Repository) SetRegistrationQRCode(ctx context.Context, registrationID, qrCode string, overwrite bool) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE registrations
SET qr_code = $2,
	updated_at = now()
WHERE registration_id = $1
	AND ($3 OR qr_code IS NULL OR qr_code = '');`, strings.TrimSpace(registrationID), qrCode, overwrite)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// CheckInRegistration marks an active, paid ticket as used.
func (r *Repository) CheckInRegistration(ctx context.Context, registrationID string) (models.Registration, error) {
	var out models.Registration
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := getRegistration(ctx, tx, registrationID, true)
		if err != nil {
			return err
		}
		if current.PaymentStatus != models.PaymentStatusSuccess || current.TicketStatus != models.TicketStatusActive {
			return ErrTicketNotActive
		}
		out, err = scanRegistration(tx.QueryRow(ctx, `
UPDATE registrations
SET ticket_status = 'used',
	checked_in_at = now(),
	updated_at = now()
WHERE registration_id = $1
RETURNING `+registrationColumns+`;`, current.RegistrationID))
		return err
	})
	return out, err
}

// ExpireTickets moves every unused ticket to expired and returns the count.
func (r *Repository) ExpireTickets(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE registrations
SET ticket_status = 'expired',
	updated_at = now()
WHERE ticket_status IN ('active', 'under_review');`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListRegistrationsForExport joins each registration with its payment.
func (r *Repository) ListRegistrationsForExport(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationExportRow, error) {
	where, args := registrationFilterSQL(filter)
	rows, err := r.pool.Query(ctx, `
WITH reg AS (
	SELECT * FROM registrations`+where+`
)
SELECT `+registrationColumns+`,
	COALESCE((SELECT p.method FROM payments p WHERE p.registration_id = reg.registration_id), ''),
	COALESCE((SELECT COALESCE(p.transaction_id, p.gateway_payment_id) FROM payments p WHERE p.registration_id = reg.registration_id), '')
FROM reg
ORDER BY created_at ASC;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.RegistrationExportRow, 0)
	for rows.Next() {
		var item models.RegistrationExportRow
		reg, err := scanRegistrationInto(rows, &item.PaymentMethod, &item.TransactionID)
		if err != nil {
			return nil, err
		}
		item.Registration = reg
		items = append(items, item)
	}
	return items, rows.Err()
}

func collectRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	defer rows.Close()
	items := make([]models.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, reg)
	}
	return items, rows.Err()
}

func scanRegistration(row pgx.Row) (models.Registration, error) {
	return scanRegistrationInto(row)
}

func scanRegistrationInto(row pgx.Row, extra ...interface{}) (models.Registration, error) {
	var out models.Registration
	var peopleRaw []byte
	var checkedInAt *time.Time
	dest := []interface{}{
		&out.ID,
		&out.RegistrationID,
		&out.Name,
		&out.Email,
		&out.Phone,
		&out.Category,
		&out.Organization,
		&out.City,
		&out.IsGuest,
		&peopleRaw,
		&out.TicketTypes,
		&out.TotalAmount,
		&out.PaymentStatus,
		&out.TicketStatus,
		&out.QRCode,
		&checkedInAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.Registration{}, err
	}
	if len(peopleRaw) > 0 {
		if err := json.Unmarshal(peopleRaw, &out.People); err != nil {
			return models.Registration{}, fmt.Errorf("decode people: %w", err)
		}
	}
	out.CheckedInAt = checkedInAt
	return out, nil
}

func marshalPeople(people []models.PersonTickets) ([]byte, error) {
	if people == nil {
		people = []models.PersonTickets{}
	}
	return json.Marshal(people)
}

func validTicketStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case models.TicketStatusUnderReview, models.TicketStatusActive, models.TicketStatusExpired, models.TicketStatusUsed:
		return true
	default:
		return false
	}
}

func trimmedPtr(val *string) interface{} {
	if val == nil {
		return nil
	}
	return strings.TrimSpace(*val)
}
