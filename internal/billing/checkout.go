// Package billing creates hosted checkout sessions for plan upgrades.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"divvy/internal/log"
)

const (
	productionBaseURL = "https://api.polar.sh/v1"
	sandboxBaseURL    = "https://sandbox-api.polar.sh/v1"
)

var (
	ErrNotConfigured  = errors.New("billing is not configured")
	ErrUnknownProduct = errors.New("no product configured for this plan and interval")
)

// Products maps plan and billing interval to the provider's product ids.
type Products struct {
	ProMonthly      string
	ProAnnually     string
	BusinessMonthly string
	BusinessAnnual  string
}

func (p Products) lookup(plan, interval string) string {
	switch plan + "/" + interval {
	case "pro/monthly":
		return p.ProMonthly
	case "pro/annually":
		return p.ProAnnually
	case "business/monthly":
		return p.BusinessMonthly
	case "business/annually":
		return p.BusinessAnnual
	}
	return ""
}

// Client talks to the checkout provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	successURL string
	products   Products
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient builds a checkout client. With sandbox true, sessions are
// created against the provider's test environment.
func NewClient(apiKey string, sandbox bool, successURL string, products Products, logger *log.Logger) *Client {
	baseURL := productionBaseURL
	if sandbox {
		baseURL = sandboxBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		successURL: successURL,
		products:   products,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.WithComponent(log.ComponentBilling),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type checkoutRequest struct {
	Products   []string          `json:"products"`
	SuccessURL string            `json:"success_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckout opens a hosted checkout session for the given plan and
// interval and returns the URL to redirect the user to.
func (c *Client) CreateCheckout(ctx context.Context, userID, plan, interval string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	productID := c.products.lookup(plan, interval)
	if productID == "" {
		return "", fmt.Errorf("%w: %s %s", ErrUnknownProduct, plan, interval)
	}

	body, err := json.Marshal(checkoutRequest{
		Products:   []string{productID},
		SuccessURL: c.successURL,
		Metadata:   map[string]string{"user_id": userID},
	})
	if err != nil {
		return "", fmt.Errorf("marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkouts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.ErrorContext(ctx, "checkout creation failed",
			log.FieldStatusCode, resp.StatusCode,
			log.FieldUserID, userID,
			log.FieldPlan, plan,
		)
		return "", fmt.Errorf("checkout API returned %d: %s", resp.StatusCode, detail)
	}

	var session checkoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode checkout response: %w", err)
	}
	if session.URL == "" {
		return "", errors.New("checkout response missing url")
	}

	c.logger.InfoContext(ctx, "checkout session created",
		log.FieldUserID, userID,
		log.FieldPlan, plan,
	)
	return session.URL, nil
}
