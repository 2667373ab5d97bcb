package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// PaymentSignature is the checkout signature: hex HMAC-SHA256 of
// "orderId|paymentId" keyed with the API key secret.
func PaymentSignature(secret, orderID, paymentID string) string {
	return sign(secret, []byte(orderID+"|"+paymentID))
}

// WebhookSignature is the hex HMAC-SHA256 of the raw webhook body.
func WebhookSignature(secret string, body []byte) string {
	return sign(secret, body)
}

func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" {
		return false
	}
	return equal(PaymentSignature(secret, orderID, paymentID), signature)
}

func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || len(body) == 0 {
		return false
	}
	return equal(WebhookSignature(secret, body), signature)
}

func sign(secret string, raw []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

func equal(expected, got string) bool {
	got = strings.TrimSpace(got)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
