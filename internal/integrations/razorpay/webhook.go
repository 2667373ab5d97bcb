package razorpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
	EventOrderPaid         = "order.paid"
)

var ErrMalformedWebhook = errors.New("malformed webhook payload")

// Notes are the merchant key/value pairs attached to orders and payments.
// The API encodes an empty set as [].
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("null")) {
		*n = Notes{}
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*n = out
	return nil
}

// PaymentEntity is the payment object carried in webhook payloads.
type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	Notes            Notes  `json:"notes"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type WebhookEvent struct {
	Event     string `json:"event"`
	AccountID string `json:"account_id"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Payment returns the payment entity of the event.
func (e WebhookEvent) Payment() PaymentEntity {
	return e.Payload.Payment.Entity
}

func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, ErrMalformedWebhook
	}
	event.Event = strings.TrimSpace(event.Event)
	if event.Event == "" {
		return WebhookEvent{}, ErrMalformedWebhook
	}
	return event, nil
}
