// Package visitors records page views, counting a session once per page
// within a trailing window.
package visitors

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"conclave/backend/internal/models"
)

// DedupWindow is how long a repeated (session, page) view is ignored.
const DedupWindow = 5 * time.Minute

const (
	maxPageLen      = 512
	maxUserAgentLen = 512
	maxReferrerLen  = 1024
	maxSessionLen   = 128
)

var ErrPageRequired = errors.New("page is required")

type Store interface {
	InsertVisitorIfAbsent(ctx context.Context, v models.Visitor, since time.Time) (bool, error)
}

type Tracker struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, window: DedupWindow, now: time.Now}
}

// Track stores the view unless the session already viewed the page inside
// the window. A missing session id falls back to the client IP.
func (t *Tracker) Track(ctx context.Context, v models.Visitor) (bool, error) {
	v.Page = truncate(strings.TrimSpace(v.Page), maxPageLen)
	if v.Page == "" {
		return false, ErrPageRequired
	}
	v.IP = strings.TrimSpace(v.IP)
	v.SessionID = truncate(strings.TrimSpace(v.SessionID), maxSessionLen)
	if v.SessionID == "" {
		v.SessionID = "ip:" + v.IP
	}
	v.UserAgent = truncate(strings.TrimSpace(v.UserAgent), maxUserAgentLen)
	v.Referrer = truncate(strings.TrimSpace(v.Referrer), maxReferrerLen)
	return t.store.InsertVisitorIfAbsent(ctx, v, t.now().Add(-t.window))
}

// truncate cuts value to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
