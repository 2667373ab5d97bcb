package models

import "time"

const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

const (
	TicketStatusUnderReview = "under_review"
	TicketStatusActive      = "active"
	TicketStatusExpired     = "expired"
	TicketStatusUsed        = "used"
)

const (
	PaymentMethodGateway = "gateway"
	PaymentMethodManual  = "manual"
)

const (
	PersonTypeAdult = "adult"
	PersonTypeChild = "child"
)

// AgeUnderTwelve is the age bracket that qualifies a member's child for a free ticket.
const AgeUnderTwelve = "<12"

const CurrencyINR = "INR"

// PersonTickets is one attendee and the ticket types selected for them.
type PersonTickets struct {
	Name       string   `json:"name,omitempty" validate:"max=200"`
	PersonType string   `json:"personType" validate:"omitempty,oneof=adult child"`
	Age        string   `json:"age,omitempty" validate:"max=20"`
	Tickets    []string `json:"tickets" validate:"max=10"`
}

// Registration is a submitted intent to attend, priced at intake and
// activated once its payment succeeds.
type Registration struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registrationId"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Category       string          `json:"category"`
	Organization   string          `json:"organization,omitempty"`
	City           string          `json:"city,omitempty"`
	IsGuest        bool            `json:"isGuest"`
	People         []PersonTickets `json:"people,omitempty"`
	TicketTypes    []string        `json:"ticketTypes,omitempty"`
	TotalAmount    int64           `json:"totalAmount"`
	PaymentStatus  string          `json:"paymentStatus"`
	TicketStatus   string          `json:"ticketStatus"`
	QRCode         string          `json:"qrCode,omitempty"`
	CheckedInAt    *time.Time      `json:"checkedInAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// AttendeeCount returns the number of people covered by the registration.
func (r Registration) AttendeeCount() int {
	if len(r.People) > 0 {
		return len(r.People)
	}
	return 1
}

// AllTicketTypes flattens per-person selections followed by legacy ticket types.
func (r Registration) AllTicketTypes() []string {
	out := make([]string, 0, len(r.TicketTypes))
	for _, person := range r.People {
		out = append(out, person.Tickets...)
	}
	return append(out, r.TicketTypes...)
}

// RegistrationPatch carries admin edits; nil fields are left unchanged.
type RegistrationPatch struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Category     *string `json:"category"`
	Organization *string `json:"organization"`
	City         *string `json:"city"`
	TicketStatus *string `json:"ticketStatus"`
}

// RegistrationFilter narrows admin registration listings.
type RegistrationFilter struct {
	PaymentStatus string
	TicketStatus  string
	Search        string
	Limit         int
	Offset        int
}

// Payment is the single logical payment attached to a registration.
type Payment struct {
	ID               string     `json:"id"`
	RegistrationID   string     `json:"registrationId"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	GatewayOrderID   string     `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string     `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string     `json:"-"`
	UPIID            string     `json:"upiId,omitempty"`
	TransactionID    string     `json:"transactionId,omitempty"`
	VerifiedBy       string     `json:"verifiedBy,omitempty"`
	VerifiedAt       *time.Time `json:"verifiedAt,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	FailureReason    string     `json:"failureReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// PaymentFilter narrows admin payment listings.
type PaymentFilter struct {
	Status string
	Method string
	Limit  int
	Offset int
}

// RegistrationExportRow joins a registration with its payment for CSV export.
type RegistrationExportRow struct {
	Registration  Registration
	PaymentMethod string
	TransactionID string
}

// TicketVerification is the public view of a ticket looked up by registration id.
type TicketVerification struct {
	Valid          bool       `json:"valid"`
	RegistrationID string     `json:"registrationId"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	TicketTypes    []string   `json:"ticketTypes"`
	Attendees      int        `json:"attendees"`
	PaymentStatus  string     `json:"paymentStatus"`
	TicketStatus   string     `json:"ticketStatus"`
	CheckedInAt    *time.Time `json:"checkedInAt,omitempty"`
}

// RegistrationStats summarises registrations for the admin dashboard.
type RegistrationStats struct {
	Total           int            `json:"total"`
	ByPaymentStatus map[string]int `json:"byPaymentStatus"`
	ByTicketStatus  map[string]int `json:"byTicketStatus"`
	Revenue         int64          `json:"revenue"`
	CheckedIn       int            `json:"checkedIn"`
}
