package repository

import (
	"context"
	"strings"

	"conclave/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const speakerColumns = `id::text, name, COALESCE(title, ''), COALESCE(organization, ''), COALESCE(bio, ''),
	COALESCE(image_url, ''), display_order, is_active, created_at, updated_at`

const bannerColumns = `id::text, title, COALESCE(subtitle, ''), image_url, COALESCE(link_url, ''),
	display_order, is_active, created_at, updated_at`

const teamColumns = `id::text, name, role, COALESCE(image_url, ''), COALESCE(linkedin_url, ''),
	display_order, is_active, created_at, updated_at`

func (r *Repository) ListSpeakers(ctx context.Context, activeOnly bool) ([]models.Speaker, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+speakerColumns+`
FROM speakers
WHERE (NOT $1 OR is_active)
ORDER BY display_order ASC, created_at ASC;`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Speaker, 0)
	for rows.Next() {
		item, err := scanSpeaker(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) GetSpeaker(ctx context.Context, id string) (models.Speaker, error) {
	out, err := scanSpeaker(r.pool.QueryRow(ctx, `SELECT `+speakerColumns+` FROM speakers WHERE id = $1::uuid;`, id))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) CreateSpeaker(ctx context.Context, in models.SpeakerInput) (models.Speaker, error) {
	return scanSpeaker(r.pool.QueryRow(ctx, `
INSERT INTO speakers (name, title, organization, bio, image_url, display_order, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+speakerColumns+`;`,
		strings.TrimSpace(in.Name),
		nullString(in.Title),
		nullString(in.Organization),
		nullString(in.Bio),
		nullString(in.ImageURL),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
}

func (r *Repository) UpdateSpeaker(ctx context.Context, id string, in models.SpeakerInput) (models.Speaker, error) {
	out, err := scanSpeaker(r.pool.QueryRow(ctx, `
UPDATE speakers
SET name = $2,
	title = $3,
	organization = $4,
	bio = $5,
	image_url = $6,
	display_order = $7,
	is_active = $8,
	updated_at = now()
WHERE id = $1::uuid
RETURNING `+speakerColumns+`;`,
		id,
		strings.TrimSpace(in.Name),
		nullString(in.Title),
		nullString(in.Organization),
		nullString(in.Bio),
		nullString(in.ImageURL),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) DeleteSpeaker(ctx context.Context, id string) (models.Speaker, error) {
	out, err := scanSpeaker(r.pool.QueryRow(ctx, `DELETE FROM speakers WHERE id = $1::uuid RETURNING `+speakerColumns+`;`, id))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) ListBanners(ctx context.Context, activeOnly bool) ([]models.Banner, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+bannerColumns+`
FROM banners
WHERE (NOT $1 OR is_active)
ORDER BY display_order ASC, created_at ASC;`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Banner, 0)
	for rows.Next() {
		item, err := scanBanner(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) GetBanner(ctx context.Context, id string) (models.Banner, error) {
	out, err := scanBanner(r.pool.QueryRow(ctx, `SELECT `+bannerColumns+` FROM banners WHERE id = $1::uuid;`, id))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) CreateBanner(ctx context.Context, in models.BannerInput) (models.Banner, error) {
	return scanBanner(r.pool.QueryRow(ctx, `
INSERT INTO banners (title, subtitle, image_url, link_url, display_order, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+bannerColumns+`;`,
		strings.TrimSpace(in.Title),
		nullString(in.Subtitle),
		strings.TrimSpace(in.ImageURL),
		nullString(in.LinkURL),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
}

func (r *Repository) UpdateBanner(ctx context.Context, id string, in models.BannerInput) (models.Banner, error) {
	out, err := scanBanner(r.pool.QueryRow(ctx, `
UPDATE banners
SET title = $2,
	subtitle = $3,
	image_url = $4,
	link_url = $5,
	display_order = $6,
	is_active = $7,
	updated_at = now()
WHERE id = $1::uuid
RETURNING `+bannerColumns+`;`,
		id,
		strings.TrimSpace(in.Title),
		nullString(in.Subtitle),
		strings.TrimSpace(in.ImageURL),
		nullString(in.LinkURL),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) DeleteBanner(ctx context.Context, id string) (models.Banner, error) {
	out, err := scanBanner(r.pool.QueryRow(ctx, `DELETE FROM banners WHERE id = $1::uuid RETURNING `+bannerColumns+`;`, id))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) ListTeamMembers(ctx context.Context, activeOnly bool) ([]models.TeamMember, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+teamColumns+`
FROM team_members
WHERE (NOT $1 OR is_active)
ORDER BY display_order ASC, created_at ASC;`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.TeamMember, 0)
	for rows.Next() {
		item, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) GetTeamMember(ctx context.Context, id string) (models.TeamMember, error) {
	out, err := scanTeamMember(r.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM team_members WHERE id = $1::uuid;`, id))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) CreateTeamMember(ctx context.Context, in models.TeamMemberInput) (models.TeamMember, error) {
	return scanTeamMember(r.pool.QueryRow(ctx, `
INSERT INTO team_members (name, role, image_url, linkedin_url, display_order, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+teamColumns+`;`,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Role),
		nullString(in.ImageURL),
		nullString(in.LinkedInURL),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
}

func (r *Repository) UpdateTeamMember(ctx context.Context, id string, in models.TeamMemberInput) (models.TeamMember, error) {
	out, err := scanTeamMember(r.pool.QueryRow(ctx, `
UPDATE team_members
SET name = $2,
	role = $3,
	image_url = $4,
	linkedin_url = $5,
	display_order = $6,
	is_active = $7,
	updated_at = now()
WHERE id = $1::uuid
RETURNING `+teamColumns+`;`,
		id,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Role),
		nullString(in.ImageURL),
		nullString(in.LinkedInURL),
		in.DisplayOrder,
		models.ActiveOrDefault(in.IsActive),
	))
	return out, notFound(err, ErrNotFound)
}

func (r *Repository) DeleteTeamMember(ctx context.Context, id string) (models.TeamMember, error) {
	out, err := scanTeamMember(r.pool.QueryRow(ctx, `DELETE FROM team_members WHERE id = $1::uuid RETURNING `+teamColumns+`;`, id))
	return out, notFound(err, ErrNotFound)
}

func scanSpeaker(row pgx.Row) (models.Speaker, error) {
	var out models.Speaker
	err := row.Scan(&out.ID, &out.Name, &out.Title, &out.Organization, &out.Bio, &out.ImageURL, &out.DisplayOrder, &out.IsActive, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func scanBanner(row pgx.Row) (models.Banner, error) {
	var out models.Banner
	err := row.Scan(&out.ID, &out.Title, &out.Subtitle, &out.ImageURL, &out.LinkURL, &out.DisplayOrder, &out.IsActive, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func scanTeamMember(row pgx.Row) (models.TeamMember, error) {
	var out models.TeamMember
	err := row.Scan(&out.ID, &out.Name, &out.Role, &out.ImageURL, &out.LinkedInURL, &out.DisplayOrder, &out.IsActive, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}
