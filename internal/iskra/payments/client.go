// Package payments integrates the hosted payment gateway: issuing payment
// links for quota-exhausted users and confirming completed payments via the
// gateway's signed webhook.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	defaultClientTimeout = 15 * time.Second

	// DefaultGrantDays is the access period purchased by one payment.
	DefaultGrantDays = 30
)

// ClientConfig configures the payment gateway client.
type ClientConfig struct {
	// BaseURL is the gateway API endpoint, e.g. https://pay.example.com/api.
	BaseURL string

	// APIKey authenticates outbound create-payment requests.
	APIKey string

	// Amount is the price of one 30-day grant, in the gateway's decimal
	// string format (e.g. "499.00").
	Amount string

	// Currency is the ISO currency code, e.g. "RUB".
	Currency string

	// ReturnURL is where the gateway redirects the user after checkout.
	ReturnURL string

	// Timeout bounds the create-payment HTTP call. Defaults to 15 s.
	Timeout time.Duration
}

// orderStore is the minimal interface the Client needs from the Store. The
// pending order is persisted before the gateway call so that the webhook can
// always resolve the order, even across a process restart.
type orderStore interface {
	CreatePendingOrder(ctx context.Context, orderID string, userID int64) error
}

// Client creates hosted payment links.
type Client struct {
	cfg        ClientConfig
	store      orderStore
	httpClient *http.Client
}

// NewClient creates a payment gateway client.
func NewClient(cfg ClientConfig, store orderStore) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// --- gateway wire types ---

type createPaymentRequest struct {
	Amount    amount            `json:"amount"`
	ReturnURL string            `json:"return_url"`
	Metadata  map[string]string `json:"metadata"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createPaymentResponse struct {
	ConfirmationURL string `json:"confirmation_url"`
	Error           *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CreatePayment issues a new payment order for the user and returns the
// hosted checkout URL. The order-to-user mapping is durably recorded before
// the gateway is contacted.
func (c *Client) CreatePayment(ctx context.Context, userID int64) (redirectURL, orderID string, err error) {
	orderID = uuid.New().String()

	if err := c.store.CreatePendingOrder(ctx, orderID, userID); err != nil {
		return "", "", fmt.Errorf("payments: %w", err)
	}

	body := createPaymentRequest{
		Amount:    amount{Value: c.cfg.Amount, Currency: c.cfg.Currency},
		ReturnURL: c.cfg.ReturnURL,
		Metadata: map[string]string{
			"order_id": orderID,
			"user_id":  fmt.Sprintf("%d", userID),
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("payments: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("payments: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Idempotence-Key", orderID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("payments: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("payments: read response body: %w", err)
	}

	var parsed createPaymentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", "", fmt.Errorf("payments: decode gateway response: %w", err)
	}
	if parsed.Error != nil {
		return "", "", fmt.Errorf("payments: gateway error: %s", parsed.Error.Message)
	}
	if parsed.ConfirmationURL == "" {
		return "", "", fmt.Errorf("payments: gateway returned no confirmation URL (HTTP %d)", resp.StatusCode)
	}

	return parsed.ConfirmationURL, orderID, nil
}
