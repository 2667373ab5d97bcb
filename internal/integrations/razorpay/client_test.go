package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "key_secret" {
			t.Errorf("unexpected basic auth: %q %q %v", user, pass, ok)
		}
		var in OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if in.Amount != 100000 || in.Currency != "INR" || in.Notes["registrationId"] != "REG-1" {
			t.Errorf("unexpected order request: %+v", in)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_Test123",
			"entity":   "order",
			"amount":   in.Amount,
			"currency": in.Currency,
			"receipt":  in.Receipt,
			"status":   "created",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/v1", KeyID: "rzp_test_key", KeySecret: "key_secret"}, srv.Client(), nil)
	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:  100000,
		Receipt: "REG-1",
		Notes:   map[string]string{"registrationId": "REG-1"},
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "order_Test123" || order.Status != "created" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCreateOrderAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, KeyID: "id", KeySecret: "secret"}, srv.Client(), nil)
	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 50})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "BAD_REQUEST_ERROR" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestCreateOrderRequiresCredentials(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	if _, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100}); err == nil {
		t.Fatalf("expected error without credentials")
	}
	if _, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 0}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}
