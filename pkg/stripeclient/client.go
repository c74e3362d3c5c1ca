/**
 * @description
 * This package provides a client for the Stripe billing API, covering the two
 * calls the access-service makes: creating a hosted checkout session and
 * canceling a subscription. It encapsulates authenticated request
 * construction, form encoding, and response parsing.
 *
 * Calls are synchronous and fail-fast: there are no retries here, and the
 * bounded http.Client timeout is the only cancellation policy beyond the
 * caller's context.
 *
 * @dependencies
 * - context, net/http, net/url, encoding/json: Standard Go libraries.
 */
package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutSessionParams describes a hosted checkout session to create.
type CheckoutSessionParams struct {
	CustomerEmail string
	PriceID       string
	SuccessURL    string
	CancelURL     string
	UserID        string
	LeagueID      string
}

// CheckoutSession is the subset of Stripe's checkout session object we read.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Subscription is the subset of Stripe's subscription object we read back
// from a cancellation.
type Subscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse represents an error returned by the Stripe API.
type ErrorResponse struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("stripe api error: %s - %s", e.Err.Type, e.Err.Message)
	}
	return "unknown stripe api error"
}

// CreateCheckoutSession creates a provider-hosted checkout session in
// subscription mode and returns it. The caller is redirected to the session
// URL to complete payment; no local state is written for it.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer_email", params.CustomerEmail)
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("metadata[user_id]", params.UserID)
	form.Set("metadata[league_id]", params.LeagueID)

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CancelSubscription cancels the provider-side subscription immediately.
func (c *Client) CancelSubscription(ctx context.Context, providerSubscriptionID string) (*Subscription, error) {
	var sub Subscription
	path := "/v1/subscriptions/" + url.PathEscape(providerSubscriptionID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// do executes one authenticated form-encoded request and decodes the response
// into out. Non-2xx responses are returned as a typed *ErrorResponse.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute stripe request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil || errResp.Err.Message == "" {
			log.Printf("level=warn component=stripe_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=stripe_client op=%s status=%d type=%q msg=%q", path, resp.StatusCode, errResp.Err.Type, errResp.Err.Message)
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode success response: %w", err)
	}
	return nil
}
