package repository

import (
	"context"
	"strings"

	"conclave/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const settingsColumns = `event_name, registration_open, sponsor_requests_open, display_attendees, display_sponsors, display_speakers, updated_at`

// GetSettings returns the singleton settings row, creating it with defaults
// on first read.
func (r *Repository) GetSettings(ctx context.Context) (models.Settings, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;`); err != nil {
		return models.Settings{}, err
	}
	return scanSettings(r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings WHERE id = 1;`))
}

func (r *Repository) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	var eventName interface{}
	if patch.EventName != nil {
		eventName = strings.TrimSpace(*patch.EventName)
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO settings (id) VALUES (1)
ON CONFLICT (id) DO UPDATE SET
	event_name = COALESCE($1, settings.event_name),
	registration_open = COALESCE($2, settings.registration_open),
	sponsor_requests_open = COALESCE($3, settings.sponsor_requests_open),
	display_attendees = COALESCE($4, settings.display_attendees),
	display_sponsors = COALESCE($5, settings.display_sponsors),
	display_speakers = COALESCE($6, settings.display_speakers),
	updated_at = now()
RETURNING `+settingsColumns+`;`,
		eventName,
		patch.RegistrationOpen,
		patch.SponsorRequestsOpen,
		patch.DisplayAttendees,
		patch.DisplaySponsors,
		patch.DisplaySpeakers,
	)
	return scanSettings(row)
}

func scanSettings(row pgx.Row) (models.Settings, error) {
	var out models.Settings
	err := row.Scan(
		&out.EventName,
		&out.RegistrationOpen,
		&out.SponsorRequestsOpen,
		&out.DisplayAttendees,
		&out.DisplaySponsors,
		&out.DisplaySpeakers,
		&out.UpdatedAt,
	)
	return out, err
}
