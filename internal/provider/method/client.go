// Package method is a minimal client for the Method Financial API, covering
// the entity and payment operations this backend uses plus the dev-only
// simulate endpoint.
package method

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiVersion = "2025-07-04"

type Config struct {
	APIKey      string
	Environment string // dev, sandbox, production
	HTTPClient  *http.Client
}

type Client struct {
	apiKey      string
	environment string
	baseURL     string
	http        *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("method: api key is required")
	}
	baseURL := ""
	switch cfg.Environment {
	case "", "dev":
		cfg.Environment = "dev"
		baseURL = "https://dev.methodfi.com"
	case "sandbox":
		baseURL = "https://sandbox.methodfi.com"
	case "production":
		baseURL = "https://production.methodfi.com"
	default:
		return nil, fmt.Errorf("method: unknown environment %q", cfg.Environment)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		apiKey:      cfg.APIKey,
		environment: cfg.Environment,
		baseURL:     baseURL,
		http:        httpClient,
	}, nil
}

func (c *Client) Environment() string { return c.environment }

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("method api: status %d: %s", e.StatusCode, e.Body)
}

type Entity struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type Payment struct {
	ID                        string `json:"id"`
	Amount                    int64  `json:"amount"`
	Source                    string `json:"source"`
	Destination               string `json:"destination"`
	Description               string `json:"description"`
	Status                    string `json:"status"`
	SourceSettlementDate      string `json:"source_settlement_date,omitempty"`
	DestinationSettlementDate string `json:"destination_settlement_date,omitempty"`
	CreatedAt                 string `json:"created_at"`
	UpdatedAt                 string `json:"updated_at"`
}

func (c *Client) CreateEntity(ctx context.Context, firstName, lastName, email, phone string) (string, error) {
	payload := map[string]any{
		"type": "individual",
		"individual": map[string]any{
			"first_name": firstName,
			"last_name":  lastName,
			"email":      email,
			"phone":      phone,
		},
	}
	var entity Entity
	if err := c.do(ctx, http.MethodPost, "/entities", payload, &entity); err != nil {
		return "", err
	}
	return entity.ID, nil
}

type PaymentRequest struct {
	Amount      int64  `json:"amount"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Description string `json:"description"`
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (Payment, error) {
	var p Payment
	err := c.do(ctx, http.MethodPost, "/payments", req, &p)
	return p, err
}

func (c *Client) GetPayment(ctx context.Context, id string) (Payment, error) {
	var p Payment
	err := c.do(ctx, http.MethodGet, "/payments/"+id, nil, &p)
	return p, err
}

func (c *Client) SimulatePaymentUpdate(ctx context.Context, id, status, errorCode string) (Payment, error) {
	if c.environment != "dev" {
		return Payment{}, fmt.Errorf("method: simulate endpoints are only available in the dev environment")
	}
	payload := map[string]string{"status": status}
	if errorCode != "" {
		payload["error_code"] = errorCode
	}
	var p Payment
	err := c.do(ctx, http.MethodPost, "/simulate/payments/"+id, payload, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, httpMethod, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Method-Version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
