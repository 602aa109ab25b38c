package keypad

import (
	"context"
	"fmt"
)

// Key is one keypress. Printable keys are their rune; the editing keys
// use the ASCII control codes below.
type Key rune

const (
	KeyNone   Key = 0
	KeyDelete Key = '\b'
	KeyEnter  Key = '\n'
	KeyEscape Key = 0x1b
)

// IsDigit reports whether k is 0-9.
func (k Key) IsDigit() bool {
	return k >= '0' && k <= '9'
}

func (k Key) String() string {
	switch k {
	case KeyDelete:
		return "delete"
	case KeyEnter:
		return "enter"
	case KeyEscape:
		return "escape"
	case KeyNone:
		return "none"
	default:
		return string(rune(k))
	}
}

// Keypad is the interface for donor input devices.
// Implementations block until a key is pressed or ctx is cancelled.
type Keypad interface {
	// Read returns the next key. KeyNone with a nil error means nothing
	// usable was read and the caller should read again.
	Read(ctx context.Context) (Key, error)

	// Close releases any resources held by the keypad.
	Close() error
}

// Config holds keypad settings.
type Config struct {
	Type   string `yaml:"type"`   // "keyboard", "serial", "wiegand", "" for none
	Device string `yaml:"device"` // e.g. "/dev/input/event0", "/dev/ttyUSB0"
	Baud   int    `yaml:"baud"`   // serial baud rate
}

// New creates a Keypad based on the provided configuration.
func New(cfg Config) (Keypad, error) {
	switch cfg.Type {
	case "keyboard":
		return NewKeyboard(cfg.Device)
	case "serial":
		return NewSerial(cfg.Device, cfg.Baud)
	case "wiegand":
		return NewWiegand(cfg.Device, cfg.Baud)
	case "", "none":
		return &Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown keypad type %q", cfg.Type)
	}
}

// Noop is a Keypad with no device; Read blocks until ctx is done.
type Noop struct{}

// Read implements Keypad.Read.
func (n *Noop) Read(ctx context.Context) (Key, error) {
	<-ctx.Done()
	return KeyNone, ctx.Err()
}

// Close implements Keypad.Close.
func (n *Noop) Close() error { return nil }
