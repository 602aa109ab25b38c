package chime

import (
	"fmt"
	"time"

	"github.com/hjkoskel/govattu"
)

// Chime is the interface for the thank-you bell rung after a donation.
type Chime interface {
	// Ring strikes the bell once. It blocks until the strike is over.
	Ring() error

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for chime implementations.
type Config struct {
	Type        string `yaml:"type"`         // "servo", "relay_high", "relay_low", "none"
	Pin         *int   `yaml:"pin"`          // GPIO pin number
	PulseMillis int    `yaml:"pulse_millis"` // relay on time
	ServoStrike int    `yaml:"servo_strike"` // PWM value at the bell
	ServoRest   int    `yaml:"servo_rest"`   // PWM value at rest
}

func (c Config) pulse() time.Duration {
	if c.PulseMillis <= 0 {
		return 150 * time.Millisecond
	}
	return time.Duration(c.PulseMillis) * time.Millisecond
}

// New creates a Chime based on the provided configuration.
func New(cfg Config) (Chime, error) {
	if cfg.Pin == nil {
		return &Noop{}, nil
	}

	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	switch cfg.Type {
	case "servo":
		return NewServo(hw, uint8(*cfg.Pin), cfg.ServoStrike, cfg.ServoRest), nil
	case "relay_high":
		return NewRelay(hw, uint8(*cfg.Pin), true, cfg.pulse()), nil
	case "relay_low":
		return NewRelay(hw, uint8(*cfg.Pin), false, cfg.pulse()), nil
	default:
		hw.Close()
		return &Noop{}, nil
	}
}

// Noop implements Chime but does nothing.
type Noop struct{}

// Ring implements Chime.Ring.
func (n *Noop) Ring() error { return nil }

// Release implements Chime.Release.
func (n *Noop) Release() error { return nil }
