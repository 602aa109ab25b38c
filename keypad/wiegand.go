package keypad

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	stx = 0x02
	etx = 0x03
)

// Wiegand implements Keypad for Wiegand keypads behind a serial bridge.
// The bridge frames each burst as STX, hex payload, ETX. Keypads in
// 4-bit mode send one nibble per key: 0-9, 0xA for star and 0xB for hash.
type Wiegand struct {
	port serial.Port
}

// NewWiegand opens the bridge on the specified serial port.
func NewWiegand(device string, baud int) (*Wiegand, error) {
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	_ = p.SetReadTimeout(50 * time.Millisecond)

	w := &Wiegand{port: p}
	w.flush()
	return w, nil
}

// Read implements Keypad.Read.
func (w *Wiegand) Read(ctx context.Context) (Key, error) {
	if w.port == nil {
		return KeyNone, errors.New("port not initialized")
	}

	for {
		select {
		case <-ctx.Done():
			return KeyNone, ctx.Err()
		default:
		}

		payload, err := w.readFrame()
		if err != nil {
			return KeyNone, err
		}
		if payload == "" {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		if key := wiegandKey(payload); key != KeyNone {
			return key, nil
		}
	}
}

// readFrame returns the payload of one STX..ETX frame, or "" if none.
func (w *Wiegand) readFrame() (string, error) {
	first := make([]byte, 1)
	n, err := w.port.Read(first)
	if err != nil {
		return "", fmt.Errorf("read STX: %w", err)
	}
	if n == 0 {
		return "", nil
	}
	if first[0] != stx {
		w.flush()
		return "", nil
	}

	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := w.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		if n == 0 {
			w.flush()
			return "", nil
		}
		if buf[0] == etx {
			break
		}
		b.WriteByte(buf[0])
	}
	return b.String(), nil
}

// wiegandKey decodes a 4-bit keypad burst. Longer payloads are card
// reads and are ignored.
func wiegandKey(payload string) Key {
	payload = strings.TrimLeft(strings.TrimSpace(payload), "0")
	if payload == "" {
		return Key('0')
	}
	if len(payload) != 1 {
		return KeyNone
	}
	v, err := hexCharToNibble(payload[0])
	if err != nil {
		return KeyNone
	}
	switch {
	case v <= 9:
		return Key('0' + v)
	case v == 0xA:
		return KeyDelete
	case v == 0xB:
		return KeyEnter
	default:
		return KeyNone
	}
}

// Close implements Keypad.Close.
func (w *Wiegand) Close() error {
	if w.port == nil {
		return nil
	}
	return w.port.Close()
}

func (w *Wiegand) flush() {
	if w.port == nil {
		return
	}
	_ = w.port.SetReadTimeout(10 * time.Millisecond)
	defer func() {
		_ = w.port.SetReadTimeout(50 * time.Millisecond)
	}()

	tmp := make([]byte, 64)
	for {
		n, err := w.port.Read(tmp)
		if err != nil || n == 0 {
			return
		}
	}
}

func hexCharToNibble(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, nil
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, nil
	default:
		return 0, fmt.Errorf("not a hex char: %q", c)
	}
}
