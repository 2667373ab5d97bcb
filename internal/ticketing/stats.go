package ticketing

import "conclave/backend/internal/models"

// TicketTypeStats counts sold tickets of one type.
type TicketTypeStats struct {
	TicketType string `json:"ticketType"`
	Paid       int    `json:"paid"`
	Free       int    `json:"free"`
	Revenue    int64  `json:"revenue"`
}

// AggregateTicketTypes breaks paid registrations down by ticket type. Every
// known ticket type is present in the result, even with zero sales.
func AggregateTicketTypes(regs []models.Registration) map[string]TicketTypeStats {
	out := make(map[string]TicketTypeStats, len(PriceTable))
	for name := range PriceTable {
		out[name] = TicketTypeStats{TicketType: name}
	}
	for _, reg := range regs {
		if reg.PaymentStatus != models.PaymentStatusSuccess {
			continue
		}
		quote, err := PriceRegistration(reg.IsGuest, reg.People, reg.TicketTypes)
		if err != nil {
			continue
		}
		for _, line := range quote.Lines {
			bucket := out[line.TicketType]
			bucket.TicketType = line.TicketType
			if line.Exempt {
				bucket.Free++
			} else {
				bucket.Paid++
				bucket.Revenue += line.Price
			}
			out[line.TicketType] = bucket
		}
	}
	return out
}
