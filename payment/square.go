package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const squareVersion = "2024-01-18"

// maxPollFailures is how many polls in a row may fail before a checkout
// is abandoned.
const maxPollFailures = 10

// Square drives a paired Square Terminal through the Terminal API.
type Square struct {
	auth         *Auth
	deviceID     string
	locationID   string
	currency     string
	pollInterval time.Duration

	mu             sync.Mutex
	currentOrderID string
}

// NewSquare creates a Terminal API processor.
func NewSquare(cfg Config, auth *Auth) *Square {
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Square{
		auth:         auth,
		deviceID:     cfg.DeviceID,
		locationID:   cfg.LocationID,
		currency:     strings.ToUpper(currency),
		pollInterval: cfg.pollInterval(),
	}
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squareCheckout struct {
	ID            string      `json:"id,omitempty"`
	AmountMoney   squareMoney `json:"amount_money"`
	ReferenceID   string      `json:"reference_id,omitempty"`
	Note          string      `json:"note,omitempty"`
	DeviceOptions struct {
		DeviceID          string `json:"device_id"`
		SkipReceiptScreen bool   `json:"skip_receipt_screen"`
	} `json:"device_options"`
	Status       string   `json:"status,omitempty"`
	PaymentIDs   []string `json:"payment_ids,omitempty"`
	CancelReason string   `json:"cancel_reason,omitempty"`
}

type squareCheckoutEnvelope struct {
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Checkout       *squareCheckout `json:"checkout"`
	Errors         []squareError   `json:"errors,omitempty"`
}

type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squareDeviceEnvelope struct {
	Device struct {
		ID     string `json:"id"`
		Status struct {
			Category string `json:"category"`
		} `json:"status"`
	} `json:"device"`
}

// CurrentOrderID implements Processor.CurrentOrderID.
func (s *Square) CurrentOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentOrderID
}

// ReaderConnected implements Processor.ReaderConnected.
func (s *Square) ReaderConnected(ctx context.Context) bool {
	category, err := s.deviceCategory(ctx)
	if err != nil {
		log.Printf("Square: device status: %v", err)
		return false
	}
	return category == "AVAILABLE"
}

// ConnectReader implements Processor.ConnectReader. Square Terminals
// reconnect on their own, so this only reports whether the device is back.
func (s *Square) ConnectReader(ctx context.Context) error {
	category, err := s.deviceCategory(ctx)
	if err != nil {
		return err
	}
	if category != "AVAILABLE" {
		return fmt.Errorf("%w: device %s is %s", ErrReaderOffline, s.deviceID, category)
	}
	return nil
}

func (s *Square) deviceCategory(ctx context.Context) (string, error) {
	var env squareDeviceEnvelope
	if err := s.do(ctx, http.MethodGet, "/v2/devices/"+s.deviceID, nil, &env); err != nil {
		return "", err
	}
	return env.Device.Status.Category, nil
}

// ProcessPayment implements Processor.ProcessPayment. It creates a
// Terminal checkout and polls it until it completes or is canceled.
func (s *Square) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	s.mu.Lock()
	s.currentOrderID = orderID
	s.mu.Unlock()

	if req.AllowOffline {
		// Terminal checkouts are queued on the device when it is offline.
		log.Printf("Square: offline payments are handled by the terminal")
	}

	note := req.Note
	if note == "" {
		note = "Donation"
		if req.CatalogItemID != "" {
			note = fmt.Sprintf("Donation (%s)", req.CatalogItemID)
		}
	}

	co := &squareCheckout{
		AmountMoney: squareMoney{Amount: Cents(req.Amount), Currency: s.currency},
		ReferenceID: orderID,
		Note:        note,
	}
	co.DeviceOptions.DeviceID = s.deviceID
	co.DeviceOptions.SkipReceiptScreen = true

	var created squareCheckoutEnvelope
	err := s.do(ctx, http.MethodPost, "/v2/terminals/checkouts", squareCheckoutEnvelope{
		IdempotencyKey: uuid.NewString(),
		Checkout:       co,
	}, &created)
	if err != nil {
		return Result{}, fmt.Errorf("create checkout: %w", err)
	}
	if created.Checkout == nil || created.Checkout.ID == "" {
		return Result{}, fmt.Errorf("create checkout: empty response")
	}
	id := created.Checkout.ID
	log.Printf("Square: checkout %s created for %s %s", id, req.Amount.StringFixed(2), s.currency)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.cancelCheckout(id)
			return Result{}, ctx.Err()
		case <-ticker.C:
		}

		var cur squareCheckoutEnvelope
		if err := s.do(ctx, http.MethodGet, "/v2/terminals/checkouts/"+id, nil, &cur); err != nil {
			if errors.Is(err, ErrNotAuthenticated) {
				return Result{}, fmt.Errorf("poll checkout %s: %w", id, err)
			}
			if ctx.Err() != nil {
				continue
			}
			failures++
			log.Printf("Square: poll checkout %s (%d/%d): %v", id, failures, maxPollFailures, err)
			if failures >= maxPollFailures {
				s.cancelCheckout(id)
				return Result{}, fmt.Errorf("poll checkout %s: %w", id, err)
			}
			continue
		}
		failures = 0
		if cur.Checkout == nil {
			continue
		}

		switch cur.Checkout.Status {
		case "COMPLETED":
			var txID string
			if len(cur.Checkout.PaymentIDs) > 0 {
				txID = cur.Checkout.PaymentIDs[0]
			}
			return Result{TransactionID: txID}, nil
		case "CANCELED":
			return Result{}, fmt.Errorf("%w: %s", ErrCanceled, cur.Checkout.CancelReason)
		}
	}
}

func (s *Square) cancelCheckout(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.do(ctx, http.MethodPost, "/v2/terminals/checkouts/"+id+"/cancel", nil, nil); err != nil {
		log.Printf("Square: cancel checkout %s: %v", id, err)
	}
}

func (s *Square) do(ctx context.Context, method, path string, in, out any) error {
	client, err := s.auth.Client(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.auth.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Square-Version", squareVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("square error %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
