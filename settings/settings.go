package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxPresets is the number of preset buttons the donation screen can show.
const MaxPresets = 6

var (
	ErrTooManyPresets = errors.New("too many presets")
	ErrPresetIndex    = errors.New("preset index out of range")
)

// Position is the vertical anchor for the home screen text block.
type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

// Organization identifies the charity the kiosk collects for. It is
// copied into every receipt.
type Organization struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	TaxID          string `yaml:"tax_id" json:"tax_id"`
	ReceiptMessage string `yaml:"receipt_message" json:"receipt_message"`
	MerchantEmail  string `yaml:"merchant_email" json:"merchant_email"`
}

// Preset is a one-tap donation amount.
type Preset struct {
	Amount        string `yaml:"amount" json:"amount"`
	CatalogItemID string `yaml:"catalog_item_id,omitempty" json:"catalog_item_id,omitempty"`
}

// Value parses the preset amount.
func (p Preset) Value() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse preset amount %q: %w", p.Amount, err)
	}
	return d, nil
}

// Layout is the presentational configuration of the home screen.
type Layout struct {
	Headline        string   `yaml:"headline" json:"headline"`
	Subtext         string   `yaml:"subtext" json:"subtext"`
	HeadlineSize    int      `yaml:"headline_size" json:"headline_size"`
	SubtextSize     int      `yaml:"subtext_size" json:"subtext_size"`
	Position        Position `yaml:"position" json:"position"`
	FineTune        int      `yaml:"fine_tune" json:"fine_tune"` // pixels, -50..50
	BackgroundImage string   `yaml:"background_image" json:"background_image"`
	Zoom            float64  `yaml:"zoom" json:"zoom"`   // 1..5
	PanX            float64  `yaml:"pan_x" json:"pan_x"` // -1..1, fraction of overflow
	PanY            float64  `yaml:"pan_y" json:"pan_y"`
}

// Kiosk holds the donor-facing behaviour of the kiosk.
type Kiosk struct {
	Layout          Layout   `yaml:"layout" json:"layout"`
	Presets         []Preset `yaml:"presets" json:"presets"`
	MinAmount       string   `yaml:"min_amount" json:"min_amount"`
	MaxAmount       string   `yaml:"max_amount" json:"max_amount"`
	IdleTimeoutSecs int      `yaml:"idle_timeout_secs" json:"idle_timeout_secs"`
	HomePageEnabled bool     `yaml:"home_page_enabled" json:"home_page_enabled"`
	AllowOffline    bool     `yaml:"allow_offline" json:"allow_offline"`
}

// Limits returns the accepted donation range. Unparseable values fall back
// to the defaults.
func (k Kiosk) Limits() (min, max decimal.Decimal) {
	def := Defaults().Kiosk
	min, err := decimal.NewFromString(k.MinAmount)
	if err != nil {
		min, _ = decimal.NewFromString(def.MinAmount)
	}
	max, err = decimal.NewFromString(k.MaxAmount)
	if err != nil {
		max, _ = decimal.NewFromString(def.MaxAmount)
	}
	return min, max
}

// IdleTimeout returns the inactivity period before the kiosk resets.
func (k Kiosk) IdleTimeout() time.Duration {
	if k.IdleTimeoutSecs <= 0 {
		return time.Duration(Defaults().Kiosk.IdleTimeoutSecs) * time.Second
	}
	return time.Duration(k.IdleTimeoutSecs) * time.Second
}

// Settings is everything the operator can change from the admin API.
type Settings struct {
	Organization Organization `yaml:"organization" json:"organization"`
	Kiosk        Kiosk        `yaml:"kiosk" json:"kiosk"`
}

// Defaults returns the settings used before the operator saves anything.
func Defaults() Settings {
	return Settings{
		Kiosk: Kiosk{
			Layout: Layout{
				Headline:     "Tap to Donate",
				Subtext:      "Every gift makes a difference",
				HeadlineSize: 64,
				SubtextSize:  32,
				Position:     PositionCenter,
				Zoom:         1,
			},
			Presets: []Preset{
				{Amount: "10"},
				{Amount: "25"},
				{Amount: "50"},
				{Amount: "100"},
			},
			MinAmount:       "1",
			MaxAmount:       "1000",
			IdleTimeoutSecs: 15,
			HomePageEnabled: true,
		},
	}
}

// Validate checks the numeric ranges and the preset list.
func (s Settings) Validate() error {
	k := s.Kiosk
	if len(k.Presets) > MaxPresets {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPresets, len(k.Presets), MaxPresets)
	}
	for i, p := range k.Presets {
		v, err := p.Value()
		if err != nil {
			return fmt.Errorf("preset %d: %w", i, err)
		}
		if !v.IsPositive() {
			return fmt.Errorf("preset %d: amount must be positive", i)
		}
	}

	min, err := decimal.NewFromString(k.MinAmount)
	if err != nil {
		return fmt.Errorf("min amount: %w", err)
	}
	max, err := decimal.NewFromString(k.MaxAmount)
	if err != nil {
		return fmt.Errorf("max amount: %w", err)
	}
	if !min.IsPositive() {
		return fmt.Errorf("min amount must be positive")
	}
	if max.LessThan(min) {
		return fmt.Errorf("max amount %s below min amount %s", max, min)
	}
	if k.IdleTimeoutSecs < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}

	l := k.Layout
	switch l.Position {
	case PositionTop, PositionCenter, PositionBottom:
	default:
		return fmt.Errorf("unknown position %q", l.Position)
	}
	if l.FineTune < -50 || l.FineTune > 50 {
		return fmt.Errorf("fine tune %d outside [-50,50]", l.FineTune)
	}
	if l.Zoom < 1 || l.Zoom > 5 {
		return fmt.Errorf("zoom %.2f outside [1,5]", l.Zoom)
	}
	if l.PanX < -1 || l.PanX > 1 || l.PanY < -1 || l.PanY > 1 {
		return fmt.Errorf("pan outside [-1,1]")
	}
	return nil
}

func (s Settings) clone() Settings {
	c := s
	c.Kiosk.Presets = append([]Preset(nil), s.Kiosk.Presets...)
	return c
}
