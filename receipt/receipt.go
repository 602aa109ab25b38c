package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a single receipt request.
const DefaultTimeout = 30 * time.Second

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,64}$`)

// ErrInvalidEmail is returned by Send before any request is made.
var ErrInvalidEmail = errors.New("invalid email address")

// ValidEmail reports whether addr looks like a deliverable address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(strings.TrimSpace(addr))
}

// Kind classifies a failed receipt delivery.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindNotConfigured
	KindRateLimited
	KindServer
	KindTimeout
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotConfigured:
		return "not_configured"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is a receipt delivery failure. Message is shown to the donor.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("receipt %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("receipt %s (status %d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Request is the body of POST /api/receipts/send.
type Request struct {
	OrganizationID             string          `json:"organization_id"`
	DonorEmail                 string          `json:"donor_email"`
	Amount                     decimal.Decimal `json:"amount"`
	TransactionID              string          `json:"transaction_id"`
	OrderID                    string          `json:"order_id"`
	PaymentDate                string          `json:"payment_date"`
	OrganizationName           string          `json:"organization_name"`
	OrganizationTaxID          string          `json:"organization_tax_id"`
	OrganizationReceiptMessage string          `json:"organization_receipt_message"`
}

// MarshalJSON sends amount as a JSON number with two decimals.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{
		plain:  plain(r),
		Amount: json.Number(r.Amount.StringFixed(2)),
	})
}

// FormatDate renders t the way the backend expects payment_date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Sender delivers a receipt. *Client implements it.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Client posts receipts to the backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a receipt client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
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

type sendResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Send posts req and maps the response onto the receipt error taxonomy.
// It returns nil on success and *Error otherwise.
func (c *Client) Send(ctx context.Context, req Request) error {
	if !ValidEmail(req.DonorEmail) {
		return ErrInvalidEmail
	}
	req.DonorEmail = strings.TrimSpace(req.DonorEmail)

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal receipt request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/receipts/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create receipt request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return &Error{Kind: KindTimeout, Message: "The request timed out. Your receipt may still have been sent.", Err: err}
		}
		return &Error{Kind: KindNetwork, Message: "Could not reach the receipt service. Please try again.", Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return classify(resp.StatusCode, data)
}

func classify(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		var r sendResponse
		if err := json.Unmarshal(body, &r); err == nil && r.Success != nil && !*r.Success {
			// The original kiosk accepted any 200; keep that but leave a trace.
			log.Printf("Receipt: backend returned 200 with success=false: %s", r.Message)
		}
		return nil
	case status == http.StatusBadRequest:
		return &Error{Kind: KindInvalidRequest, Status: status, Message: "Invalid request. Please check the email address and try again."}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotConfigured, Status: status, Message: "Receipts are not configured for this organization."}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Status: status, Message: "Too many requests. Please wait a moment and try again."}
	case status >= 500 && status <= 599:
		return &Error{Kind: KindServer, Status: status, Message: "Server error. Your donation was still recorded."}
	default:
		return &Error{Kind: KindUnknown, Status: status, Message: fmt.Sprintf("Could not send receipt (error %d).", status)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// MessageFor returns the donor-facing text for err.
func MessageFor(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	if errors.Is(err, ErrInvalidEmail) {
		return "Please enter a valid email address."
	}
	return "Could not send receipt. Please try again."
}
