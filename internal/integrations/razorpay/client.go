package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
}

type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	logger     *slog.Logger
}

type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Body        string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("razorpay api status %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("razorpay api status %d: %s", e.StatusCode, e.Body)
}

// OrderRequest opens an order. Amount is in minor units (paise).
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		keyID:      strings.TrimSpace(cfg.KeyID),
		keySecret:  strings.TrimSpace(cfg.KeySecret),
		httpClient: httpClient,
		logger:     logger,
	}
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder opens a gateway order.
func (c *Client) CreateOrder(ctx context.Context, in OrderRequest) (Order, error) {
	if in.Amount <= 0 {
		return Order{}, fmt.Errorf("order amount must be positive")
	}
	if strings.TrimSpace(in.Currency) == "" {
		in.Currency = "INR"
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return Order{}, err
	}
	body, err := c.do(ctx, http.MethodPost, "/orders", payload)
	if err != nil {
		return Order{}, err
	}
	var out Order
	if err := json.Unmarshal(body, &out); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return Order{}, fmt.Errorf("razorpay order id is empty")
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, pathPart string, payload []byte) ([]byte, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, fmt.Errorf("razorpay credentials are required")
	}
	target := c.baseURL + path.Clean("/"+strings.TrimSpace(pathPart))

	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return body, apiErr
	}

	if c.logger != nil {
		c.logger.Debug("razorpay_api_response", "method", method, "path", pathPart, "status", resp.StatusCode)
	}
	return body, nil
}
