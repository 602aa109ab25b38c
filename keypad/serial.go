package keypad

import (
	"context"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Serial implements Keypad for matrix keypads behind a USB serial
// adapter that send one ASCII byte per key.
type Serial struct {
	port   *serial.Port
	device string
}

// NewSerial opens the serial keypad.
func NewSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = 9600
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: time.Second,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device}, nil
}

// Read implements Keypad.Read.
func (s *Serial) Read(ctx context.Context) (Key, error) {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return KeyNone, ctx.Err()
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil || n == 0 {
			continue // timeout
		}
		if key := serialKey(buf[0]); key != KeyNone {
			return key, nil
		}
	}
}

// serialKey maps a keypad byte. The star key deletes and the hash key
// enters, as printed on 12-key pads.
func serialKey(b byte) Key {
	switch {
	case b >= '0' && b <= '9':
		return Key(b)
	case b == '*' || b == 0x08 || b == 0x7f:
		return KeyDelete
	case b == '#' || b == '\r' || b == '\n':
		return KeyEnter
	case b == 0x1b:
		return KeyEscape
	default:
		return KeyNone
	}
}

// Close implements Keypad.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
