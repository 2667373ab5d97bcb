package ticketing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"conclave/backend/internal/models"
)

var (
	ErrNoTickets         = errors.New("at least one ticket is required")
	ErrUnknownTicketType = errors.New("unknown ticket type")
)

const (
	TicketBusinessConclave = "Business_Conclave"
	TicketAwardsNight      = "Awards_Night"
	TicketCulturalEvening  = "Cultural_Evening"
	TicketNetworkingDinner = "Networking_Dinner"
)

// PriceTable holds ticket prices in whole rupees.
var PriceTable = map[string]int64{
	TicketBusinessConclave: 1000,
	TicketAwardsNight:      1500,
	TicketCulturalEvening:  500,
	TicketNetworkingDinner: 2000,
}

// PriceLine is one priced ticket of a registration.
type PriceLine struct {
	Person     string `json:"person,omitempty"`
	TicketType string `json:"ticketType"`
	Price      int64  `json:"price"`
	Exempt     bool   `json:"exempt"`
}

// Quote is the priced breakdown of a registration.
type Quote struct {
	Lines []PriceLine `json:"lines"`
	Total int64       `json:"total"`
}

// TicketTypes lists the sellable ticket types in a stable order.
func TicketTypes() []string {
	out := make([]string, 0, len(PriceTable))
	for name := range PriceTable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsExempt reports whether a person's tickets are free: children under 12
// on a member (non-guest) registration.
func IsExempt(isGuest bool, person models.PersonTickets) bool {
	if isGuest {
		return false
	}
	personType := strings.ToLower(strings.TrimSpace(person.PersonType))
	age := strings.ReplaceAll(strings.TrimSpace(person.Age), " ", "")
	return personType == models.PersonTypeChild && age == models.AgeUnderTwelve
}

// PriceRegistration prices per-person selections and the legacy flat list.
func PriceRegistration(isGuest bool, people []models.PersonTickets, legacy []string) (Quote, error) {
	var quote Quote
	for _, person := range people {
		exempt := IsExempt(isGuest, person)
		for _, ticketType := range person.Tickets {
			price, err := lookupPrice(ticketType)
			if err != nil {
				return Quote{}, err
			}
			if exempt {
				price = 0
			}
			quote.Lines = append(quote.Lines, PriceLine{
				Person:     strings.TrimSpace(person.Name),
				TicketType: strings.TrimSpace(ticketType),
				Price:      price,
				Exempt:     exempt,
			})
			quote.Total += price
		}
	}
	for _, ticketType := range legacy {
		price, err := lookupPrice(ticketType)
		if err != nil {
			return Quote{}, err
		}
		quote.Lines = append(quote.Lines, PriceLine{TicketType: strings.TrimSpace(ticketType), Price: price})
		quote.Total += price
	}
	if len(quote.Lines) == 0 {
		return Quote{}, ErrNoTickets
	}
	return quote, nil
}

func lookupPrice(ticketType string) (int64, error) {
	price, ok := PriceTable[strings.TrimSpace(ticketType)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTicketType, ticketType)
	}
	return price, nil
}

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount int64) int64 {
	return amount * 100
}
