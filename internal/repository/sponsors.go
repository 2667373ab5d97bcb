package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"conclave/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrSponsorNotFound        = errors.New("sponsor not found")
	ErrSponsorRequestNotFound = errors.New("sponsor request not found")
	ErrSponsorRequestDecided  = errors.New("sponsor request already decided")
)

const sponsorColumns = `id::text, name, tier, COALESCE(logo_url, ''), COALESCE(website, ''),
	COALESCE(description, ''), display_order, is_active, created_at, updated_at`

const sponsorRequestColumns = `id::text, company_name, contact_name, email, phone, COALESCE(tier, ''),
	COALESCE(website, ''), COALESCE(logo_url, ''), requested_amount, COALESCE(message, ''), status,
	COALESCE(rejection_reason, ''), COALESCE(sponsor_id::text, ''), reviewed_at, created_at`

func (r *Repository) ListSponsors(ctx context.Context, activeOnly bool) ([]models.Sponsor, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+sponsorColumns+`
FROM sponsors
WHERE (NOT $1 OR is_active)
ORDER BY display_order ASC, created_at ASC;`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Sponsor, 0)
	for rows.Next() {
		item, err := scanSponsor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) GetSponsor(ctx context.Context, id string) (models.Sponsor, error) {
	out, err := scanSponsor(r.pool.QueryRow(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE id = $1::uuid;`, id))
	if err != nil {
		return models.Sponsor{}, notFound(err, ErrSponsorNotFound)
	}
	return out, nil
}

func (r *Repository) CreateSponsor(ctx context.Context, in models.SponsorInput) (models.Sponsor, error) {
	return createSponsor(ctx, r.pool, in)
}

func createSponsor(ctx context.Context, q queryRunner, in models.SponsorInput) (models.Sponsor, error) {
	return scanSponsor(q.QueryRow(ctx, `
INSERT INTO sponsors (name, tier, logo_url, website, description, display_order, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+sponsorColumns+`;`,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Tier),
		nullString(in.LogoURL),
		nullString(in.Website),
		nullString(in.Description),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
}

func (r *Repository) UpdateSponsor(ctx context.Context, id string, in models.SponsorInput) (models.Sponsor, error) {
	out, err := scanSponsor(r.pool.QueryRow(ctx, `
UPDATE sponsors
SET name = $2,
	tier = $3,
	logo_url = $4,
	website = $5,
	description = $6,
	display_order = $7,
	is_active = $8,
	updated_at = now()
WHERE id = $1::uuid
RETURNING `+sponsorColumns+`;`,
		id,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Tier),
		nullString(in.LogoURL),
		nullString(in.Website),
		nullString(in.Description),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
	if err != nil {
		return models.Sponsor{}, notFound(err, ErrSponsorNotFound)
	}
	return out, nil
}

func (r *Repository) DeleteSponsor(ctx context.Context, id string) (models.Sponsor, error) {
	out, err := scanSponsor(r.pool.QueryRow(ctx, `DELETE FROM sponsors WHERE id = $1::uuid RETURNING `+sponsorColumns+`;`, id))
	if err != nil {
		return models.Sponsor{}, notFound(err, ErrSponsorNotFound)
	}
	return out, nil
}

func (r *Repository) CreateSponsorRequest(ctx context.Context, req models.SponsorRequest) (models.SponsorRequest, error) {
	return scanSponsorRequest(r.pool.QueryRow(ctx, `
INSERT INTO sponsor_requests (company_name, contact_name, email, phone, tier, website, logo_url, requested_amount, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+sponsorRequestColumns+`;`,
		strings.TrimSpace(req.CompanyName),
		strings.TrimSpace(req.ContactName),
		strings.TrimSpace(req.Email),
		strings.TrimSpace(req.Phone),
		nullString(req.Tier),
		nullString(req.Website),
		nullString(req.LogoURL),
		req.RequestedAmount,
		nullString(req.Message),
	))
}

func (r *Repository) ListSponsorRequests(ctx context.Context, status string) ([]models.SponsorRequest, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+sponsorRequestColumns+`
FROM sponsor_requests
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC;`, nullString(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.SponsorRequest, 0)
	for rows.Next() {
		item, err := scanSponsorRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ApproveSponsorRequest materialises a Sponsor from a pending request and
// stamps the request approved.
func (r *Repository) ApproveSponsorRequest(ctx context.Context, id string, displayOrder int) (models.SponsorRequest, models.Sponsor, error) {
	var request models.SponsorRequest
	var sponsor models.Sponsor
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := lockPendingSponsorRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		tier := current.Tier
		if tier == "" {
			tier = "partner"
		}
		sponsor, err = createSponsor(ctx, tx, models.SponsorInput{
			Name:         current.CompanyName,
			Tier:         tier,
			LogoURL:      current.LogoURL,
			Website:      current.Website,
			Description:  current.Message,
			DisplayOrder: displayOrder,
		})
		if err != nil {
			return err
		}
		request, err = scanSponsorRequest(tx.QueryRow(ctx, `
UPDATE sponsor_requests
SET status = 'approved',
	sponsor_id = $2::uuid,
	reviewed_at = now()
WHERE id = $1::uuid
RETURNING `+sponsorRequestColumns+`;`, current.ID, sponsor.ID))
		return err
	})
	return request, sponsor, err
}

func (r *Repository) RejectSponsorRequest(ctx context.Context, id, reason string) (models.SponsorRequest, error) {
	var request models.SponsorRequest
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := lockPendingSponsorRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		request, err = scanSponsorRequest(tx.QueryRow(ctx, `
UPDATE sponsor_requests
SET status = 'rejected',
	rejection_reason = $2,
	reviewed_at = now()
WHERE id = $1::uuid
RETURNING `+sponsorRequestColumns+`;`, current.ID, nullString(reason)))
		return err
	})
	return request, err
}

func lockPendingSponsorRequest(ctx context.Context, tx pgx.Tx, id string) (models.SponsorRequest, error) {
	current, err := scanSponsorRequest(tx.QueryRow(ctx, `
SELECT `+sponsorRequestColumns+`
FROM sponsor_requests
WHERE id = $1::uuid
FOR UPDATE;`, id))
	if err != nil {
		return models.SponsorRequest{}, notFound(err, ErrSponsorRequestNotFound)
	}
	if current.Status != models.SponsorRequestPending {
		return models.SponsorRequest{}, ErrSponsorRequestDecided
	}
	return current, nil
}

func scanSponsor(row pgx.Row) (models.Sponsor, error) {
	var out models.Sponsor
	err := row.Scan(
		&out.ID,
		&out.Name,
		&out.Tier,
		&out.LogoURL,
		&out.Website,
		&out.Description,
		&out.DisplayOrder,
		&out.IsActive,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	return out, err
}

func scanSponsorRequest(row pgx.Row) (models.SponsorRequest, error) {
	var out models.SponsorRequest
	var reviewedAt *time.Time
	err := row.Scan(
		&out.ID,
		&out.CompanyName,
		&out.ContactName,
		&out.Email,
		&out.Phone,
		&out.Tier,
		&out.Website,
		&out.LogoURL,
		&out.RequestedAmount,
		&out.Message,
		&out.Status,
		&out.RejectionReason,
		&out.SponsorID,
		&reviewedAt,
		&out.CreatedAt,
	)
	out.ReviewedAt = reviewedAt
	return out, err
}
