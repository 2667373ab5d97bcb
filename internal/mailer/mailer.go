package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"conclave/backend/internal/config"
	"conclave/backend/internal/models"
	"conclave/backend/internal/ticketing"

	"github.com/wneessen/go-mail"
)

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	// Inline attachments keyed by content id.
	Inline map[string][]byte
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders ticket and rejection emails.
type Mailer struct {
	sender    Sender
	eventName string
	appURL    string
	secret    string
	logger    *slog.Logger
}

type Options struct {
	EventName     string
	AppURL        string
	SigningSecret string
}

func New(sender Sender, opts Options, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	eventName := strings.TrimSpace(opts.EventName)
	if eventName == "" {
		eventName = "the Conclave"
	}
	return &Mailer{
		sender:    sender,
		eventName: eventName,
		appURL:    opts.AppURL,
		secret:    opts.SigningSecret,
		logger:    logger,
	}
}

// SendTicket emails the confirmed ticket with the QR embedded inline.
func (m *Mailer) SendTicket(ctx context.Context, reg models.Registration, qrPNG []byte) error {
	if len(qrPNG) == 0 {
		return fmt.Errorf("ticket qr is required")
	}
	html, text, err := render(ticketHTML, ticketText, newTicketView(m.eventName, m.appURL, m.secret, reg, ""))
	if err != nil {
		return err
	}
	msg := Message{
		To:      reg.Email,
		Subject: fmt.Sprintf("Your ticket for %s (%s)", m.eventName, reg.RegistrationID),
		HTML:    html,
		Text:    text,
		Inline:  map[string][]byte{ticketing.QRContentID: qrPNG},
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send ticket email: %w", err)
	}
	m.logger.Info("ticket_email_sent", "registration_id", reg.RegistrationID)
	return nil
}

// SendPaymentRejected tells the registrant their payment was not accepted.
func (m *Mailer) SendPaymentRejected(ctx context.Context, reg models.Registration, reason string) error {
	html, text, err := render(rejectedHTML, rejectedText, newTicketView(m.eventName, m.appURL, m.secret, reg, reason))
	if err != nil {
		return err
	}
	msg := Message{
		To:      reg.Email,
		Subject: fmt.Sprintf("Payment not confirmed for %s", reg.RegistrationID),
		HTML:    html,
		Text:    text,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send rejection email: %w", err)
	}
	m.logger.Info("rejection_email_sent", "registration_id", reg.RegistrationID)
	return nil
}

// LogSender records messages in the log instead of delivering them. It
// stands in when no SMTP relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("mail_not_configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

// SMTPSender delivers messages over SMTP. SendGrid is used through its relay.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("SMTP_HOST or SENDGRID_API_KEY is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("SMTP_FROM is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, m)
}

func (s *SMTPSender) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	// The last alternative is the preferred one, so HTML goes after plain text.
	if msg.Text != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	} else {
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	}
	// go-mail uses the file name as the Content-ID of embedded parts.
	for contentID, data := range msg.Inline {
		if err := m.EmbedReader(contentID, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("embed %s: %w", contentID, err)
		}
	}
	return m, nil
}
