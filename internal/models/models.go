package models

import "time"

const (
	SponsorRequestPending  = "pending"
	SponsorRequestApproved = "approved"
	SponsorRequestRejected = "rejected"
)

// MinSponsorRequestAmount is the smallest sponsorship (INR) accepted at submission.
const MinSponsorRequestAmount int64 = 25000

// Settings is the singleton row of site feature flags and display counters.
type Settings struct {
	EventName           string    `json:"eventName"`
	RegistrationOpen    bool      `json:"registrationOpen"`
	SponsorRequestsOpen bool      `json:"sponsorRequestsOpen"`
	DisplayAttendees    int       `json:"displayAttendees"`
	DisplaySponsors     int       `json:"displaySponsors"`
	DisplaySpeakers     int       `json:"displaySpeakers"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// SettingsPatch carries admin edits; nil fields are left unchanged.
type SettingsPatch struct {
	EventName           *string `json:"eventName"`
	RegistrationOpen    *bool   `json:"registrationOpen"`
	SponsorRequestsOpen *bool   `json:"sponsorRequestsOpen"`
	DisplayAttendees    *int    `json:"displayAttendees" validate:"omitempty,min=0"`
	DisplaySponsors     *int    `json:"displaySponsors" validate:"omitempty,min=0"`
	DisplaySpeakers     *int    `json:"displaySpeakers" validate:"omitempty,min=0"`
}

type Sponsor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Tier         string    `json:"tier"`
	LogoURL      string    `json:"logoUrl,omitempty"`
	Website      string    `json:"website,omitempty"`
	Description  string    `json:"description,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type SponsorInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Tier         string `json:"tier" validate:"required,max=50"`
	LogoURL      string `json:"logoUrl" validate:"omitempty,url"`
	Website      string `json:"website" validate:"omitempty,url"`
	Description  string `json:"description" validate:"max=2000"`
	DisplayOrder int    `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

// SponsorRequest is a sponsorship proposal awaiting an admin decision.
type SponsorRequest struct {
	ID              string     `json:"id"`
	CompanyName     string     `json:"companyName"`
	ContactName     string     `json:"contactName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Tier            string     `json:"tier,omitempty"`
	Website         string     `json:"website,omitempty"`
	LogoURL         string     `json:"logoUrl,omitempty"`
	RequestedAmount int64      `json:"requestedAmount"`
	Message         string     `json:"message,omitempty"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	SponsorID       string     `json:"sponsorId,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Speaker struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Title        string    `json:"title,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type SpeakerInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Title        string `json:"title" validate:"max=200"`
	Organization string `json:"organization" validate:"max=200"`
	Bio          string `json:"bio" validate:"max=4000"`
	ImageURL     string `json:"imageUrl" validate:"omitempty,url"`
	DisplayOrder int    `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

type Banner struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	ImageURL     string    `json:"imageUrl"`
	LinkURL      string    `json:"linkUrl,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type BannerInput struct {
	Title        string `json:"title" validate:"required,max=200"`
	Subtitle     string `json:"subtitle" validate:"max=400"`
	ImageURL     string `json:"imageUrl" validate:"required,url"`
	LinkURL      string `json:"linkUrl" validate:"omitempty,url"`
	DisplayOrder int    `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

type TeamMember struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	LinkedInURL  string    `json:"linkedinUrl,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type TeamMemberInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Role         string `json:"role" validate:"required,max=200"`
	ImageURL     string `json:"imageUrl" validate:"omitempty,url"`
	LinkedInURL  string `json:"linkedinUrl" validate:"omitempty,url"`
	DisplayOrder int    `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

// Visitor is one recorded page view.
type Visitor struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Page      string    `json:"page"`
	SessionID string    `json:"sessionId"`
	Referrer  string    `json:"referrer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type PageCount struct {
	Page  string `json:"page"`
	Views int    `json:"views"`
}

// VisitorStats aggregates page views since a point in time.
type VisitorStats struct {
	Since          time.Time   `json:"since"`
	TotalViews     int         `json:"totalViews"`
	UniqueSessions int         `json:"uniqueSessions"`
	TopPages       []PageCount `json:"topPages"`
}

// ActiveOrDefault resolves an optional active flag, defaulting to true.
func ActiveOrDefault(flag *bool) bool {
	if flag == nil {
		return true
	}
	return *flag
}
