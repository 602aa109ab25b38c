package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotAuthenticated = errors.New("payment provider not authenticated")
	ErrReaderOffline    = errors.New("card reader offline")
	ErrCanceled         = errors.New("payment canceled")
	ErrDeclined         = errors.New("payment declined")
)

// Request describes one card payment.
type Request struct {
	Amount         decimal.Decimal
	OrderID        string // assigned by the processor when empty
	IsCustomAmount bool
	CatalogItemID  string
	AllowOffline   bool
	Note           string
}

// Result is returned for a completed payment.
type Result struct {
	TransactionID string
}

// Processor drives the card reader.
//
// ProcessPayment blocks until the donor completes, cancels or the reader
// fails. Cancelling ctx abandons the checkout on the reader.
type Processor interface {
	ReaderConnected(ctx context.Context) bool
	ConnectReader(ctx context.Context) error
	ProcessPayment(ctx context.Context, req Request) (Result, error)
	// CurrentOrderID returns the order id of the most recent payment.
	CurrentOrderID() string
}

// Config holds payment provider settings.
type Config struct {
	Type         string          `yaml:"type"`        // "square", "simulator"
	Environment  string          `yaml:"environment"` // "sandbox", "production"
	ClientID     string          `yaml:"client_id"`
	ClientSecret string          `yaml:"client_secret" env:"SQUARE_CLIENT_SECRET"`
	RedirectURL  string          `yaml:"redirect_url"`
	DeviceID     string          `yaml:"device_id"`
	LocationID   string          `yaml:"location_id"`
	Currency     string          `yaml:"currency"`
	TokenFile    string          `yaml:"token_file"`
	PollMillis   int             `yaml:"poll_millis"`
	BaseURL      string          `yaml:"base_url"` // overrides the Square host, for testing
	Simulator    SimulatorConfig `yaml:"simulator"`
}

// Provider bundles the processor with the OAuth session that backs it.
// Auth is nil for processors that need no sign-in.
type Provider struct {
	Processor Processor
	Auth      *Auth
}

// IsAuthenticated reports whether payments can be attempted.
func (p *Provider) IsAuthenticated() bool {
	if p.Auth == nil {
		return true
	}
	return p.Auth.IsAuthenticated()
}

// New creates a Provider based on the provided configuration.
func New(cfg Config) (*Provider, error) {
	switch cfg.Type {
	case "square":
		auth, err := NewAuth(cfg)
		if err != nil {
			return nil, fmt.Errorf("init square auth: %w", err)
		}
		return &Provider{Processor: NewSquare(cfg, auth), Auth: auth}, nil
	case "simulator", "":
		return &Provider{Processor: NewSimulator(cfg.Simulator)}, nil
	default:
		return nil, fmt.Errorf("unknown payment type %q", cfg.Type)
	}
}

// Cents converts a major-unit amount to minor units, rounding half up.
func Cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (c Config) pollInterval() time.Duration {
	if c.PollMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.PollMillis) * time.Millisecond
}
