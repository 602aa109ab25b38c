package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNoOrganization = errors.New("organization id not configured")
	ErrNoSubscription = errors.New("no subscription for organization")
)

// Status is the billing state reported by the backend.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
)

// Subscription is a read-only projection of the organization's billing.
type Subscription struct {
	Status          Status `json:"status"`
	PlanType        string `json:"plan_type"`
	DeviceCount     int    `json:"device_count"`
	NextBillingDate string `json:"next_billing_date,omitempty"`
	ServiceEndsDate string `json:"service_ends_date,omitempty"`
	DaysRemaining   int    `json:"days_remaining"`
}

// Usable reports whether the kiosk may take donations under s.
func (s Subscription) Usable() bool {
	switch s.Status {
	case StatusActive, StatusTrialing:
		return true
	case StatusCanceled:
		// Canceled subscriptions run to the end of the paid period.
		return s.DaysRemaining > 0
	default:
		return false
	}
}

// CheckoutSession is a hosted Stripe Checkout page.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Client calls the backend's Stripe endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a billing client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SetTransport replaces the HTTP transport, e.g. to trust a private CA.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

type orgRequest struct {
	OrganizationID string `json:"organization_id"`
	MerchantEmail  string `json:"merchant_email,omitempty"`
}

// CreateCheckoutSession starts a subscription checkout.
func (c *Client) CreateCheckoutSession(ctx context.Context, orgID, merchantEmail string) (*CheckoutSession, error) {
	if orgID == "" {
		return nil, ErrNoOrganization
	}
	var out CheckoutSession
	if err := c.post(ctx, "/api/stripe/create-checkout-session", orgRequest{OrganizationID: orgID, MerchantEmail: merchantEmail}, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("checkout session without url")
	}
	return &out, nil
}

// CreatePortalSession returns a Customer Portal link.
func (c *Client) CreatePortalSession(ctx context.Context, orgID string) (string, error) {
	if orgID == "" {
		return "", ErrNoOrganization
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/api/stripe/create-portal-session", orgRequest{OrganizationID: orgID}, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("portal session without url")
	}
	return out.URL, nil
}

// FetchStatus returns the current subscription.
func (c *Client) FetchStatus(ctx context.Context, orgID string) (*Subscription, error) {
	if orgID == "" {
		return nil, ErrNoOrganization
	}
	u := c.baseURL + "/api/stripe/subscription/status?organization_id=" + url.QueryEscape(orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}

	var out Subscription
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels the subscription at the end of the billing period.
func (c *Client) Cancel(ctx context.Context, orgID string) error {
	if orgID == "" {
		return ErrNoOrganization
	}
	return c.post(ctx, "/api/stripe/cancel-subscription", orgRequest{OrganizationID: orgID}, nil)
}

// Resume undoes a pending cancellation or a pause.
func (c *Client) Resume(ctx context.Context, orgID string) error {
	if orgID == "" {
		return ErrNoOrganization
	}
	return c.post(ctx, "/api/stripe/resume-subscription", orgRequest{OrganizationID: orgID}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoSubscription
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
