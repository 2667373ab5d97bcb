package ticketing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrInvalidQRPayload = errors.New("invalid qr payload")
	ErrInvalidQRSign    = errors.New("invalid qr signature")
)

const (
	// VerifyPathPrefix is the public route a ticket QR points to.
	VerifyPathPrefix = "/tickets/verify/"
	// QRContentID names the inline PNG attachment referenced from ticket emails.
	QRContentID = "ticket-qr.png"

	qrImageSize   = 320
	dataURLPrefix = "data:image/png;base64,"
	signatureLen  = 16
)

// SignRegistrationID returns the short signature carried in ticket links.
func SignRegistrationID(secret, registrationID string) string {
	return signRaw(secret, []byte(registrationID))[:signatureLen]
}

// TicketURL builds the verification link encoded into a ticket QR.
func TicketURL(appURL, secret, registrationID string) string {
	link := strings.TrimRight(appURL, "/") + VerifyPathPrefix + url.PathEscape(registrationID)
	if strings.TrimSpace(secret) == "" {
		return link
	}
	return link + "?sig=" + SignRegistrationID(secret, registrationID)
}

// ParseTicketURL extracts the registration id from a scanned ticket link and
// checks its signature.
func ParseTicketURL(secret, payload string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(payload))
	if err != nil {
		return "", ErrInvalidQRPayload
	}
	idx := strings.Index(parsed.Path, VerifyPathPrefix)
	if idx < 0 {
		return "", ErrInvalidQRPayload
	}
	registrationID, err := url.PathUnescape(strings.Trim(parsed.Path[idx+len(VerifyPathPrefix):], "/"))
	if err != nil || registrationID == "" || strings.Contains(registrationID, "/") {
		return "", ErrInvalidQRPayload
	}
	if strings.TrimSpace(secret) == "" {
		return registrationID, nil
	}
	if !VerifyRegistrationSignature(secret, registrationID, parsed.Query().Get("sig")) {
		return "", ErrInvalidQRSign
	}
	return registrationID, nil
}

// VerifyRegistrationSignature checks a ticket link signature in constant time.
func VerifyRegistrationSignature(secret, registrationID, signature string) bool {
	expected := SignRegistrationID(secret, registrationID)
	got := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func GenerateQRImagePNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = qrImageSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// IssueTicketQR renders the ticket QR for a registration and returns the PNG
// together with its data URL form for storage.
func IssueTicketQR(appURL, secret, registrationID string) ([]byte, string, error) {
	if strings.TrimSpace(registrationID) == "" {
		return nil, "", fmt.Errorf("registration id is required")
	}
	png, err := GenerateQRImagePNG(TicketURL(appURL, secret, registrationID), qrImageSize)
	if err != nil {
		return nil, "", err
	}
	return png, EncodeDataURL(png), nil
}

func EncodeDataURL(png []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png)
}

// DecodeDataURL returns the PNG bytes of a stored QR data URL.
func DecodeDataURL(value string) ([]byte, error) {
	if !strings.HasPrefix(value, dataURLPrefix) {
		return nil, ErrInvalidQRPayload
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, dataURLPrefix))
	if err != nil {
		return nil, ErrInvalidQRPayload
	}
	return raw, nil
}

func signRaw(secret string, raw []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}
