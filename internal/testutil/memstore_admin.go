package testutil

import (
	"context"
	"sort"
	"strings"
	"time"

	"conclave/backend/internal/models"
	"conclave/backend/internal/repository"
)

// createSettings materialises the settings row on first access, like the
// INSERT ... ON CONFLICT DO NOTHING in the repository.
func (s *MemStore) createSettings() {
	if s.SettingsCreated {
		return
	}
	s.SettingsCreated = true
	s.Settings.UpdatedAt = s.now()
}

func (s *MemStore) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("UpdateSettings")
	s.createSettings()
	if patch.EventName != nil {
		s.Settings.EventName = strings.TrimSpace(*patch.EventName)
	}
	if patch.RegistrationOpen != nil {
		s.Settings.RegistrationOpen = *patch.RegistrationOpen
	}
	if patch.SponsorRequestsOpen != nil {
		s.Settings.SponsorRequestsOpen = *patch.SponsorRequestsOpen
	}
	if patch.DisplayAttendees != nil {
		s.Settings.DisplayAttendees = *patch.DisplayAttendees
	}
	if patch.DisplaySponsors != nil {
		s.Settings.DisplaySponsors = *patch.DisplaySponsors
	}
	if patch.DisplaySpeakers != nil {
		s.Settings.DisplaySpeakers = *patch.DisplaySpeakers
	}
	s.Settings.UpdatedAt = s.now()
	return s.Settings, nil
}

func (s *MemStore) ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListRegistrations")
	matched := s.filterRegistrations(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []models.Registration{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *MemStore) filterRegistrations(filter models.RegistrationFilter) []models.Registration {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Registration, 0, len(s.Registrations))
	for _, reg := range s.Registrations {
		if v := strings.TrimSpace(filter.PaymentStatus); v != "" && reg.PaymentStatus != v {
			continue
		}
		if v := strings.TrimSpace(filter.TicketStatus); v != "" && reg.TicketStatus != v {
			continue
		}
		if search != "" {
			hay := strings.ToLower(strings.Join([]string{reg.Name, reg.Email, reg.Phone, reg.RegistrationID}, "\n"))
			if !strings.Contains(hay, search) {
				continue
			}
		}
		out = append(out, reg)
	}
	return out
}

func (s *MemStore) UpdateRegistration(ctx context.Context, registrationID string, patch models.RegistrationPatch) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("UpdateRegistration")
	if patch.TicketStatus != nil {
		switch strings.TrimSpace(*patch.TicketStatus) {
		case models.TicketStatusUnderReview, models.TicketStatusActive, models.TicketStatusExpired, models.TicketStatusUsed:
		default:
			return models.Registration{}, repository.ErrInvalidTicketStatus
		}
	}
	reg, ok := s.Registrations[strings.TrimSpace(registrationID)]
	if !ok {
		return models.Registration{}, repository.ErrRegistrationNotFound
	}
	apply := func(dst *string, val *string) {
		if val != nil {
			*dst = strings.TrimSpace(*val)
		}
	}
	apply(&reg.Name, patch.Name)
	apply(&reg.Email, patch.Email)
	apply(&reg.Phone, patch.Phone)
	apply(&reg.Category, patch.Category)
	apply(&reg.Organization, patch.Organization)
	apply(&reg.City, patch.City)
	apply(&reg.TicketStatus, patch.TicketStatus)
	reg.UpdatedAt = s.now()
	s.Registrations[reg.RegistrationID] = reg
	return reg, nil
}

func (s *MemStore) CancelRegistration(ctx context.Context, registrationID string) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("CancelRegistration")
	reg, ok := s.Registrations[strings.TrimSpace(registrationID)]
	if !ok {
		return models.Registration{}, repository.ErrRegistrationNotFound
	}
	reg.TicketStatus = models.TicketStatusExpired
	reg.UpdatedAt = s.now()
	s.Registrations[reg.RegistrationID] = reg
	return reg, nil
}

func (s *MemStore) ExpireTickets(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ExpireTickets")
	var n int64
	for id, reg := range s.Registrations {
		if reg.TicketStatus != models.TicketStatusActive && reg.TicketStatus != models.TicketStatusUnderReview {
			continue
		}
		reg.TicketStatus = models.TicketStatusExpired
		reg.UpdatedAt = s.now()
		s.Registrations[id] = reg
		n++
	}
	return n, nil
}

func (s *MemStore) ListRegistrationsForExport(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationExportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListRegistrationsForExport")
	regs := s.filterRegistrations(filter)
	sort.Slice(regs, func(i, j int) bool { return regs[i].CreatedAt.Before(regs[j].CreatedAt) })
	out := make([]models.RegistrationExportRow, 0, len(regs))
	for _, reg := range regs {
		row := models.RegistrationExportRow{Registration: reg}
		if p, ok := s.Payments[reg.RegistrationID]; ok {
			row.PaymentMethod = p.Method
			row.TransactionID = keep(p.TransactionID, p.GatewayPaymentID)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *MemStore) ListPaidRegistrations(ctx context.Context) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListPaidRegistrations")
	out := make([]models.Registration, 0)
	for _, reg := range s.Registrations {
		if reg.PaymentStatus == models.PaymentStatusSuccess {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) RegistrationStats(ctx context.Context) (models.RegistrationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("RegistrationStats")
	out := models.RegistrationStats{
		ByPaymentStatus: map[string]int{
			models.PaymentStatusPending: 0,
			models.PaymentStatusSuccess: 0,
			models.PaymentStatusFailed:  0,
		},
		ByTicketStatus: map[string]int{
			models.TicketStatusUnderReview: 0,
			models.TicketStatusActive:      0,
			models.TicketStatusExpired:     0,
			models.TicketStatusUsed:        0,
		},
	}
	for _, reg := range s.Registrations {
		out.Total++
		out.ByPaymentStatus[reg.PaymentStatus]++
		out.ByTicketStatus[reg.TicketStatus]++
		if reg.CheckedInAt != nil {
			out.CheckedIn++
		}
		if reg.PaymentStatus == models.PaymentStatusSuccess {
			out.Revenue += reg.TotalAmount
		}
	}
	return out, nil
}

func (s *MemStore) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListPayments")
	out := make([]models.Payment, 0, len(s.Payments))
	for _, p := range s.Payments {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Method != "" && p.Method != filter.Method {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, len(out), nil
}

func (s *MemStore) CreateSponsorRequest(ctx context.Context, req models.SponsorRequest) (models.SponsorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("CreateSponsorRequest")
	req.ID = s.nextID()
	req.Status = models.SponsorRequestPending
	req.CreatedAt = s.now()
	s.SponsorRequests[req.ID] = req
	return req, nil
}

func (s *MemStore) ListSponsorRequests(ctx context.Context, status string) ([]models.SponsorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListSponsorRequests")
	out := make([]models.SponsorRequest, 0, len(s.SponsorRequests))
	for _, req := range s.SponsorRequests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ApproveSponsorRequest(ctx context.Context, id string, displayOrder int) (models.SponsorRequest, models.Sponsor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ApproveSponsorRequest")
	req, err := s.pendingSponsorRequest(id)
	if err != nil {
		return models.SponsorRequest{}, models.Sponsor{}, err
	}
	tier := req.Tier
	if tier == "" {
		tier = "partner"
	}
	now := s.now()
	sponsor := models.Sponsor{
		ID:           s.nextID(),
		Name:         req.CompanyName,
		Tier:         tier,
		LogoURL:      req.LogoURL,
		Website:      req.Website,
		Description:  req.Message,
		DisplayOrder: displayOrder,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Sponsors = append(s.Sponsors, sponsor)
	req.Status = models.SponsorRequestApproved
	req.SponsorID = sponsor.ID
	req.ReviewedAt = &now
	s.SponsorRequests[req.ID] = req
	return req, sponsor, nil
}

func (s *MemStore) RejectSponsorRequest(ctx context.Context, id, reason string) (models.SponsorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("RejectSponsorRequest")
	req, err := s.pendingSponsorRequest(id)
	if err != nil {
		return models.SponsorRequest{}, err
	}
	now := s.now()
	req.Status = models.SponsorRequestRejected
	req.RejectionReason = strings.TrimSpace(reason)
	req.ReviewedAt = &now
	s.SponsorRequests[req.ID] = req
	return req, nil
}

func (s *MemStore) pendingSponsorRequest(id string) (models.SponsorRequest, error) {
	req, ok := s.SponsorRequests[id]
	if !ok {
		return models.SponsorRequest{}, repository.ErrSponsorRequestNotFound
	}
	if req.Status != models.SponsorRequestPending {
		return models.SponsorRequest{}, repository.ErrSponsorRequestDecided
	}
	return req, nil
}

func (s *MemStore) VisitorStats(ctx context.Context, since time.Time, topN int) (models.VisitorStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("VisitorStats")
	out := models.VisitorStats{Since: since, TopPages: make([]models.PageCount, 0)}
	sessions := map[string]struct{}{}
	pages := map[string]int{}
	for _, v := range s.Visitors {
		if v.CreatedAt.Before(since) {
			continue
		}
		out.TotalViews++
		sessions[v.SessionID] = struct{}{}
		pages[v.Page]++
	}
	out.UniqueSessions = len(sessions)
	for page, views := range pages {
		out.TopPages = append(out.TopPages, models.PageCount{Page: page, Views: views})
	}
	sort.Slice(out.TopPages, func(i, j int) bool {
		if out.TopPages[i].Views != out.TopPages[j].Views {
			return out.TopPages[i].Views > out.TopPages[j].Views
		}
		return out.TopPages[i].Page < out.TopPages[j].Page
	})
	if topN > 0 && len(out.TopPages) > topN {
		out.TopPages = out.TopPages[:topN]
	}
	return out, nil
}
