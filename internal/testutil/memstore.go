// Package testutil holds in-memory fakes for service tests.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"conclave/backend/internal/models"
	"conclave/backend/internal/repository"
)

// MemStore mirrors the repository semantics the services and handlers depend on.
type MemStore struct {
	mu              sync.Mutex
	Settings        models.Settings
	SettingsCreated bool
	Registrations   map[string]models.Registration
	Payments        map[string]models.Payment
	Visitors        []models.Visitor
	SponsorRequests map[string]models.SponsorRequest
	Sponsors        []models.Sponsor
	// DuplicateIDs makes the next n inserts fail with ErrDuplicateRegistrationID.
	DuplicateIDs int
	Calls        map[string]int
	now          func() time.Time
	seq          int
}

func NewMemStore() *MemStore {
	return &MemStore{
		Settings: models.Settings{
			EventName:           "Conclave",
			RegistrationOpen:    true,
			SponsorRequestsOpen: true,
		},
		Registrations:   map[string]models.Registration{},
		Payments:        map[string]models.Payment{},
		SponsorRequests: map[string]models.SponsorRequest{},
		Calls:           map[string]int{},
		now:             time.Now,
	}
}

// SetNow replaces the clock used for timestamps.
func (s *MemStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CallCount returns how often a store method was invoked.
func (s *MemStore) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[name]
}

func (s *MemStore) track(name string) {
	s.Calls[name]++
}

func (s *MemStore) nextID() string {
	s.seq++
	return strconv.Itoa(s.seq)
}

func (s *MemStore) GetSettings(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("GetSettings")
	s.createSettings()
	return s.Settings, nil
}

func (s *MemStore) InsertRegistration(ctx context.Context, reg models.Registration) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("InsertRegistration")
	if s.DuplicateIDs > 0 {
		s.DuplicateIDs--
		return models.Registration{}, repository.ErrDuplicateRegistrationID
	}
	if _, ok := s.Registrations[reg.RegistrationID]; ok {
		return models.Registration{}, repository.ErrDuplicateRegistrationID
	}
	now := s.now()
	reg.ID = s.nextID()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	s.Registrations[reg.RegistrationID] = reg
	return reg, nil
}

// PutRegistration seeds a registration directly.
func (s *MemStore) PutRegistration(reg models.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg.ID == "" {
		reg.ID = s.nextID()
	}
	s.Registrations[reg.RegistrationID] = reg
}

func (s *MemStore) GetRegistration(ctx context.Context, registrationID string) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("GetRegistration")
	reg, ok := s.Registrations[strings.TrimSpace(registrationID)]
	if !ok {
		return models.Registration{}, repository.ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *MemStore) ListRegistrationsByEmail(ctx context.Context, email string) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListRegistrationsByEmail")
	out := make([]models.Registration, 0)
	for _, reg := range s.Registrations {
		if strings.EqualFold(reg.Email, strings.TrimSpace(email)) {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) SetRegistrationQRCode(ctx context.Context, registrationID, qrCode string, overwrite bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("SetRegistrationQRCode")
	reg, ok := s.Registrations[registrationID]
	if !ok || (!overwrite && reg.QRCode != "") {
		return false, nil
	}
	reg.QRCode = qrCode
	reg.UpdatedAt = s.now()
	s.Registrations[registrationID] = reg
	return true, nil
}

func (s *MemStore) CheckInRegistration(ctx context.Context, registrationID string) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("CheckInRegistration")
	reg, ok := s.Registrations[registrationID]
	if !ok {
		return models.Registration{}, repository.ErrRegistrationNotFound
	}
	if reg.PaymentStatus != models.PaymentStatusSuccess || reg.TicketStatus != models.TicketStatusActive {
		return models.Registration{}, repository.ErrTicketNotActive
	}
	now := s.now()
	reg.TicketStatus = models.TicketStatusUsed
	reg.CheckedInAt = &now
	reg.UpdatedAt = now
	s.Registrations[registrationID] = reg
	return reg, nil
}

func (s *MemStore) GetPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("GetPaymentByOrderID")
	for _, p := range s.Payments {
		if orderID != "" && p.GatewayOrderID == orderID {
			return p, nil
		}
	}
	return models.Payment{}, repository.ErrPaymentNotFound
}

func (s *MemStore) GetPaymentByRegistrationID(ctx context.Context, registrationID string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("GetPaymentByRegistrationID")
	p, ok := s.Payments[registrationID]
	if !ok {
		return models.Payment{}, repository.ErrPaymentNotFound
	}
	return p, nil
}

func (s *MemStore) UpsertPayment(ctx context.Context, params repository.UpsertPaymentParams) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("UpsertPayment")
	return s.upsertPayment(params), nil
}

func (s *MemStore) upsertPayment(params repository.UpsertPaymentParams) models.Payment {
	now := s.now()
	p, ok := s.Payments[params.RegistrationID]
	if !ok {
		p = models.Payment{ID: s.nextID(), RegistrationID: params.RegistrationID, CreatedAt: now}
	}
	p.Amount = params.Amount
	p.Currency = params.Currency
	if p.Currency == "" {
		p.Currency = models.CurrencyINR
	}
	p.Method = params.Method
	p.Status = params.Status
	p.GatewayOrderID = keep(params.GatewayOrderID, p.GatewayOrderID)
	p.GatewayPaymentID = keep(params.GatewayPaymentID, p.GatewayPaymentID)
	p.GatewaySignature = keep(params.GatewaySignature, p.GatewaySignature)
	p.UPIID = keep(params.UPIID, p.UPIID)
	p.TransactionID = keep(params.TransactionID, p.TransactionID)
	p.Notes = keep(params.Notes, p.Notes)
	p.FailureReason = params.FailureReason
	if params.VerifiedBy != "" {
		p.VerifiedBy = params.VerifiedBy
		p.VerifiedAt = &now
	}
	p.UpdatedAt = now
	s.Payments[params.RegistrationID] = p
	return p
}

func (s *MemStore) ApplyPaymentOutcome(ctx context.Context, params repository.PaymentOutcomeParams) (repository.PaymentOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ApplyPaymentOutcome")
	reg, ok := s.Registrations[params.Payment.RegistrationID]
	if !ok {
		return repository.PaymentOutcome{}, repository.ErrRegistrationNotFound
	}
	status := params.Payment.Status
	if status == models.PaymentStatusFailed && reg.PaymentStatus == models.PaymentStatusSuccess && !params.AllowDowngrade {
		return repository.PaymentOutcome{}, repository.ErrPaymentAlreadySettled
	}
	paymentParams := params.Payment
	if paymentParams.Amount == 0 {
		paymentParams.Amount = reg.TotalAmount
	}
	payment := s.upsertPayment(paymentParams)

	previous := reg.PaymentStatus
	reg.PaymentStatus = status
	// Expired and used tickets are never revived by a payment outcome.
	switch {
	case status == models.PaymentStatusSuccess && reg.TicketStatus == models.TicketStatusUnderReview:
		reg.TicketStatus = models.TicketStatusActive
	case status == models.PaymentStatusFailed && reg.TicketStatus == models.TicketStatusActive:
		reg.TicketStatus = models.TicketStatusUnderReview
	}
	reg.UpdatedAt = s.now()
	s.Registrations[reg.RegistrationID] = reg
	return repository.PaymentOutcome{Registration: reg, Payment: payment, PreviousStatus: previous}, nil
}

func (s *MemStore) InsertVisitorIfAbsent(ctx context.Context, v models.Visitor, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("InsertVisitorIfAbsent")
	for _, existing := range s.Visitors {
		if existing.SessionID == v.SessionID && existing.Page == v.Page && !existing.CreatedAt.Before(since) {
			return false, nil
		}
	}
	v.ID = s.nextID()
	v.CreatedAt = s.now()
	s.Visitors = append(s.Visitors, v)
	return true, nil
}

func keep(next, current string) string {
	if strings.TrimSpace(next) == "" {
		return current
	}
	return next
}
