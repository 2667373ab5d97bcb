package ticketing

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"conclave/backend/internal/models"
)

// ExportHeader is the fixed column layout of the registrations CSV.
var ExportHeader = []string{
	"Registration ID",
	"Name",
	"Email",
	"Phone",
	"Category",
	"Guest",
	"Organization",
	"City",
	"Ticket Types",
	"Attendees",
	"Total Amount",
	"Payment Status",
	"Ticket Status",
	"Payment Method",
	"Transaction ID",
	"Created At",
}

// WriteRegistrationsCSV writes the export with every field quoted.
func WriteRegistrationsCSV(w io.Writer, rows []models.RegistrationExportRow) error {
	bw := bufio.NewWriter(w)
	if err := writeCSVRecord(bw, ExportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeCSVRecord(bw, exportRecord(row)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func exportRecord(row models.RegistrationExportRow) []string {
	reg := row.Registration
	guest := "No"
	if reg.IsGuest {
		guest = "Yes"
	}
	return []string{
		reg.RegistrationID,
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.Category,
		guest,
		reg.Organization,
		reg.City,
		strings.Join(reg.AllTicketTypes(), "; "),
		strconv.Itoa(reg.AttendeeCount()),
		strconv.FormatInt(reg.TotalAmount, 10),
		reg.PaymentStatus,
		reg.TicketStatus,
		row.PaymentMethod,
		row.TransactionID,
		reg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeCSVRecord(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quoteCSVField(field)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

// quoteCSVField wraps a value in quotes, doubles embedded quotes and
// neutralises leading spreadsheet formula characters.
func quoteCSVField(value string) string {
	if value != "" && strings.ContainsRune("=+-@", rune(value[0])) {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			value = "'" + value
		}
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
