package repository

import (
	"context"
	"strings"
	"time"

	"conclave/backend/internal/models"
)

// InsertVisitorIfAbsent records a page view unless the same session already
// viewed the page at or after since. It reports whether a row was written.
func (r *Repository) InsertVisitorIfAbsent(ctx context.Context, v models.Visitor, since time.Time) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
INSERT INTO visitors (ip, user_agent, page, session_id, referrer)
SELECT $1, $2, $3, $4, $5
WHERE NOT EXISTS (
	SELECT 1
	FROM visitors
	WHERE session_id = $4
		AND page = $3
		AND created_at >= $6
);`,
		strings.TrimSpace(v.IP),
		strings.TrimSpace(v.UserAgent),
		strings.TrimSpace(v.Page),
		strings.TrimSpace(v.SessionID),
		nullString(v.Referrer),
		since,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *Repository) VisitorStats(ctx context.Context, since time.Time, topN int) (models.VisitorStats, error) {
	out := models.VisitorStats{Since: since, TopPages: make([]models.PageCount, 0)}
	if err := r.pool.QueryRow(ctx, `
SELECT count(*), count(DISTINCT session_id)
FROM visitors
WHERE created_at >= $1;`, since).Scan(&out.TotalViews, &out.UniqueSessions); err != nil {
		return out, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT page, count(*)
FROM visitors
WHERE created_at >= $1
GROUP BY page
ORDER BY count(*) DESC, page ASC
LIMIT $2;`, since, clampLimit(topN, 10, 100))
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var item models.PageCount
		if err := rows.Scan(&item.Page, &item.Views); err != nil {
			return out, err
		}
		out.TopPages = append(out.TopPages, item)
	}
	return out, rows.Err()
}
