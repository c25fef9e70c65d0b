package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

type ProcessorIntent struct {
	IntentID     string
	ClientSecret string
}

// Processor is the contract this engine expects from a payment processor.
// Card tokenization, 3-D Secure and the rest of the processor's internals
// stay on the other side of this interface.
type Processor interface {
	CreateIntent(ctx context.Context, amountCents int, currency, customerID string) (ProcessorIntent, error)
	IntentStatus(ctx context.Context, intentID string) (PaymentStatus, error)
}

// AuthorizerClient talks to the payment authorizer service over HTTP.
type AuthorizerClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAuthorizerClient(baseURL string) *AuthorizerClient {
	return &AuthorizerClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

type createIntentReq struct {
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	CustomerID  string `json:"customer_id"`
}

type createIntentResp struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

func (c *AuthorizerClient) CreateIntent(ctx context.Context, amountCents int, currency, customerID string) (ProcessorIntent, error) {
	body, err := json.Marshal(createIntentReq{AmountCents: amountCents, Currency: currency, CustomerID: customerID})
	if err != nil {
		return ProcessorIntent{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/intents", bytes.NewReader(body))
	if err != nil {
		return ProcessorIntent{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return ProcessorIntent{}, fmt.Errorf("create intent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ProcessorIntent{}, fmt.Errorf("create intent: processor returned %d", resp.StatusCode)
	}

	var out createIntentResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ProcessorIntent{}, fmt.Errorf("create intent: %w", err)
	}
	return ProcessorIntent{IntentID: out.IntentID, ClientSecret: out.ClientSecret}, nil
}

type intentStatusResp struct {
	Status string `json:"status"`
}

func (c *AuthorizerClient) IntentStatus(ctx context.Context, intentID string) (PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/intents/"+intentID, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("intent status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrIntentUnknown
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("intent status: processor returned %d", resp.StatusCode)
	}

	var out intentStatusResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("intent status: %w", err)
	}
	switch out.Status {
	case "succeeded":
		return PaymentSucceeded, nil
	case "failed", "declined":
		return PaymentFailed, nil
	default:
		return PaymentPending, nil
	}
}
