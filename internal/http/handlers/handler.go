package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"conclave/backend/internal/config"
	authmw "conclave/backend/internal/http/middleware"
	"conclave/backend/internal/integrations"
	"conclave/backend/internal/models"
	"conclave/backend/internal/payments"
	"conclave/backend/internal/rate"
	"conclave/backend/internal/registration"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/visitors"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// MediaStore keeps uploaded images and removes replaced ones.
type MediaStore interface {
	UploadObject(ctx context.Context, folder, fileName, contentType string, body io.Reader, size int64) (string, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

// Store is the persistence the admin and public handlers use directly.
type Store interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error)
	GetRegistration(ctx context.Context, registrationID string) (models.Registration, error)
	ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error)
	UpdateRegistration(ctx context.Context, registrationID string, patch models.RegistrationPatch) (models.Registration, error)
	CancelRegistration(ctx context.Context, registrationID string) (models.Registration, error)
	CheckInRegistration(ctx context.Context, registrationID string) (models.Registration, error)
	ListRegistrationsForExport(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationExportRow, error)
	ListPaidRegistrations(ctx context.Context) ([]models.Registration, error)
	RegistrationStats(ctx context.Context) (models.RegistrationStats, error)
	GetPaymentByRegistrationID(ctx context.Context, registrationID string) (models.Payment, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	CreateSponsorRequest(ctx context.Context, req models.SponsorRequest) (models.SponsorRequest, error)
	ListSponsorRequests(ctx context.Context, status string) ([]models.SponsorRequest, error)
	ApproveSponsorRequest(ctx context.Context, id string, displayOrder int) (models.SponsorRequest, models.Sponsor, error)
	RejectSponsorRequest(ctx context.Context, id, reason string) (models.SponsorRequest, error)
	VisitorStats(ctx context.Context, since time.Time, topN int) (models.VisitorStats, error)
}

// ContentStore manages sponsors, speakers, banners and team members.
type ContentStore interface {
	ListSponsors(ctx context.Context, activeOnly bool) ([]models.Sponsor, error)
	GetSponsor(ctx context.Context, id string) (models.Sponsor, error)
	CreateSponsor(ctx context.Context, in models.SponsorInput) (models.Sponsor, error)
	UpdateSponsor(ctx context.Context, id string, in models.SponsorInput) (models.Sponsor, error)
	DeleteSponsor(ctx context.Context, id string) (models.Sponsor, error)
	ListSpeakers(ctx context.Context, activeOnly bool) ([]models.Speaker, error)
	GetSpeaker(ctx context.Context, id string) (models.Speaker, error)
	CreateSpeaker(ctx context.Context, in models.SpeakerInput) (models.Speaker, error)
	UpdateSpeaker(ctx context.Context, id string, in models.SpeakerInput) (models.Speaker, error)
	DeleteSpeaker(ctx context.Context, id string) (models.Speaker, error)
	ListBanners(ctx context.Context, activeOnly bool) ([]models.Banner, error)
	GetBanner(ctx context.Context, id string) (models.Banner, error)
	CreateBanner(ctx context.Context, in models.BannerInput) (models.Banner, error)
	UpdateBanner(ctx context.Context, id string, in models.BannerInput) (models.Banner, error)
	DeleteBanner(ctx context.Context, id string) (models.Banner, error)
	ListTeamMembers(ctx context.Context, activeOnly bool) ([]models.TeamMember, error)
	GetTeamMember(ctx context.Context, id string) (models.TeamMember, error)
	CreateTeamMember(ctx context.Context, in models.TeamMemberInput) (models.TeamMember, error)
	UpdateTeamMember(ctx context.Context, id string, in models.TeamMemberInput) (models.TeamMember, error)
	DeleteTeamMember(ctx context.Context, id string) (models.TeamMember, error)
}

var (
	_ Store        = (*repository.Repository)(nil)
	_ ContentStore = (*repository.Repository)(nil)
)

type Deps struct {
	Store         Store
	Content       ContentStore
	Registrations *registration.Service
	Payments      *payments.Service
	Visitors      *visitors.Tracker
	Media         MediaStore
}

type Handler struct {
	store         Store
	content       ContentStore
	registrations *registration.Service
	payments      *payments.Service
	visitors      *visitors.Tracker
	media         MediaStore
	images        integrations.ImageProcessor
	cfg           *config.Config
	logger        *slog.Logger
	validator     *validator.Validate
	loginLimiter  *rate.WindowLimiter
	now           func() time.Time
}

func New(deps Deps, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:         deps.Store,
		content:       deps.Content,
		registrations: deps.Registrations,
		payments:      deps.Payments,
		visitors:      deps.Visitors,
		media:         deps.Media,
		images:        integrations.NewImageProcessor(),
		cfg:           cfg,
		logger:        logger,
		validator:     validator.New(),
		loginLimiter:  rate.NewWindowLimiter(5, time.Minute),
		now:           time.Now,
	}
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if logger == nil {
		return slog.Default()
	}
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if email, ok := authmw.AdminEmailFromContext(r.Context()); ok {
		logger = logger.With("admin", email)
	}
	return logger
}
