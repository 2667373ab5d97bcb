package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"conclave/backend/internal/models"
	"conclave/backend/internal/ticketing"
)

type ticketView struct {
	EventName      string
	Name           string
	RegistrationID string
	TicketTypes    string
	Attendees      int
	TotalAmount    int64
	VerifyURL      string
	QRContentID    string
	Reason         string
}

var ticketHTML = htmltemplate.Must(htmltemplate.New("ticket").Parse(`<!doctype html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Your ticket for {{.EventName}}</h2>
  <p>Hi {{.Name}},</p>
  <p>Your payment has been confirmed. Please present the QR code below at the venue.</p>
  <table cellpadding="4">
    <tr><td><strong>Registration ID</strong></td><td>{{.RegistrationID}}</td></tr>
    <tr><td><strong>Tickets</strong></td><td>{{.TicketTypes}}</td></tr>
    <tr><td><strong>Attendees</strong></td><td>{{.Attendees}}</td></tr>
    <tr><td><strong>Amount paid</strong></td><td>&#8377;{{.TotalAmount}}</td></tr>
  </table>
  <p><img src="cid:{{.QRContentID}}" alt="Ticket QR code" width="240" height="240"></p>
  <p>You can also check your ticket at <a href="{{.VerifyURL}}">{{.VerifyURL}}</a>.</p>
</body>
</html>`))

var ticketText = texttemplate.Must(texttemplate.New("ticket").Parse(`Hi {{.Name}},

Your payment for {{.EventName}} has been confirmed.

Registration ID: {{.RegistrationID}}
Tickets: {{.TicketTypes}}
Attendees: {{.Attendees}}
Amount paid: INR {{.TotalAmount}}

Check your ticket: {{.VerifyURL}}
`))

var rejectedHTML = htmltemplate.Must(htmltemplate.New("rejected").Parse(`<!doctype html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Payment not confirmed</h2>
  <p>Hi {{.Name}},</p>
  <p>We could not confirm the payment for registration <strong>{{.RegistrationID}}</strong> ({{.EventName}}).</p>
  {{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
  <p>Please reply to this email or contact the organisers if you believe this is a mistake.</p>
</body>
</html>`))

var rejectedText = texttemplate.Must(texttemplate.New("rejected").Parse(`Hi {{.Name}},

We could not confirm the payment for registration {{.RegistrationID}} ({{.EventName}}).
{{if .Reason}}Reason: {{.Reason}}
{{end}}
Please contact the organisers if you believe this is a mistake.
`))

func newTicketView(eventName, appURL, secret string, reg models.Registration, reason string) ticketView {
	return ticketView{
		EventName:      eventName,
		Name:           reg.Name,
		RegistrationID: reg.RegistrationID,
		TicketTypes:    strings.Join(reg.AllTicketTypes(), ", "),
		Attendees:      reg.AttendeeCount(),
		TotalAmount:    reg.TotalAmount,
		VerifyURL:      ticketing.TicketURL(appURL, secret, reg.RegistrationID),
		QRContentID:    ticketing.QRContentID,
		Reason:         reason,
	}
}

func render(html *htmltemplate.Template, text *texttemplate.Template, view ticketView) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, view); err != nil {
		return "", "", err
	}
	if err := text.Execute(&textBuf, view); err != nil {
		return "", "", err
	}
	return htmlBuf.String(), textBuf.String(), nil
}
