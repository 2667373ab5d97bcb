package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"conclave/backend/internal/models"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/ticketing"

	"github.com/go-playground/validator/v10"
)

const insertAttempts = 3

var ErrRegistrationClosed = errors.New("registration is closed")

// Store is the persistence the intake flow needs.
type Store interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	InsertRegistration(ctx context.Context, reg models.Registration) (models.Registration, error)
	ListRegistrationsByEmail(ctx context.Context, email string) ([]models.Registration, error)
}

// Input is the public registration form.
type Input struct {
	Name         string                 `json:"name" validate:"required,max=200"`
	Email        string                 `json:"email" validate:"required,email,max=254"`
	Phone        string                 `json:"phone" validate:"required,max=32"`
	Category     string                 `json:"category" validate:"required,max=100"`
	Organization string                 `json:"organization" validate:"max=200"`
	City         string                 `json:"city" validate:"max=100"`
	IsGuest      bool                   `json:"isGuest"`
	People       []models.PersonTickets `json:"people" validate:"max=20,dive"`
	TicketTypes  []string               `json:"ticketTypes" validate:"max=20"`
}

// ValidationError reports the first rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type Service struct {
	store     Store
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates and prices the form, then stores a pending registration
// under a fresh identifier.
func (s *Service) Create(ctx context.Context, in Input) (models.Registration, error) {
	in = normalize(in)
	if err := s.validator.Struct(in); err != nil {
		return models.Registration{}, translate(err)
	}
	quote, err := ticketing.PriceRegistration(in.IsGuest, in.People, in.TicketTypes)
	if err != nil {
		return models.Registration{}, &ValidationError{Field: "tickets", Message: err.Error()}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return models.Registration{}, err
	}
	if !settings.RegistrationOpen {
		return models.Registration{}, ErrRegistrationClosed
	}

	reg := models.Registration{
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Category:      in.Category,
		Organization:  in.Organization,
		City:          in.City,
		IsGuest:       in.IsGuest,
		People:        in.People,
		TicketTypes:   in.TicketTypes,
		TotalAmount:   quote.Total,
		PaymentStatus: models.PaymentStatusPending,
		TicketStatus:  models.TicketStatusUnderReview,
	}
	for attempt := 1; attempt <= insertAttempts; attempt++ {
		reg.RegistrationID = ticketing.NewRegistrationID(s.now())
		stored, err := s.store.InsertRegistration(ctx, reg)
		if err == nil {
			s.logger.Info("registration_created",
				"registration_id", stored.RegistrationID,
				"total_amount", stored.TotalAmount,
				"attendees", stored.AttendeeCount(),
			)
			return stored, nil
		}
		if !errors.Is(err, repository.ErrDuplicateRegistrationID) {
			return models.Registration{}, err
		}
		s.logger.Warn("registration_id_collision", "registration_id", reg.RegistrationID, "attempt", attempt)
	}
	return models.Registration{}, fmt.Errorf("allocate registration id: %w", repository.ErrDuplicateRegistrationID)
}

// ListByEmail returns the registrations submitted with an email address.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]models.Registration, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validator.Var(email, "required,email"); err != nil {
		return nil, &ValidationError{Field: "email", Message: "valid email required"}
	}
	return s.store.ListRegistrationsByEmail(ctx, email)
}

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Category = strings.TrimSpace(in.Category)
	in.Organization = strings.TrimSpace(in.Organization)
	in.City = strings.TrimSpace(in.City)
	people := make([]models.PersonTickets, 0, len(in.People))
	for _, person := range in.People {
		person.Name = strings.TrimSpace(person.Name)
		person.PersonType = strings.ToLower(strings.TrimSpace(person.PersonType))
		if person.PersonType == "" {
			person.PersonType = models.PersonTypeAdult
		}
		person.Age = strings.TrimSpace(person.Age)
		person.Tickets = trimAll(person.Tickets)
		people = append(people, person)
	}
	in.People = people
	in.TicketTypes = trimAll(in.TicketTypes)
	return in
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: "invalid input"}
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "email":
		return &ValidationError{Field: field, Message: "must be a valid email"}
	case "max":
		return &ValidationError{Field: field, Message: "is too long"}
	case "oneof":
		return &ValidationError{Field: field, Message: "must be one of " + fe.Param()}
	default:
		return &ValidationError{Field: field, Message: "is invalid"}
	}
}
