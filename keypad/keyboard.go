package keypad

import (
	"context"
	"fmt"
	"log"
	"unicode"

	"github.com/kenshaw/evdev"
)

// Linux input key codes.
const (
	codeEsc        = 1
	codeBackspace  = 14
	codeEnter      = 28
	codeLeftShift  = 42
	codeRightShift = 54
	codeKPEnter    = 96
)

// plainKeys maps Linux key codes to their unshifted rune.
var plainKeys = map[uint16]rune{
	2: '1', 3: '2', 4: '3', 5: '4', 6: '5', 7: '6', 8: '7', 9: '8', 10: '9', 11: '0',
	12: '-', 13: '=', 52: '.',
	16: 'q', 17: 'w', 18: 'e', 19: 'r', 20: 't', 21: 'y', 22: 'u', 23: 'i', 24: 'o', 25: 'p',
	30: 'a', 31: 's', 32: 'd', 33: 'f', 34: 'g', 35: 'h', 36: 'j', 37: 'k', 38: 'l',
	44: 'z', 45: 'x', 46: 'c', 47: 'v', 48: 'b', 49: 'n', 50: 'm',
	// keypad block
	71: '7', 72: '8', 73: '9', 74: '-', 75: '4', 76: '5', 77: '6', 78: '+',
	79: '1', 80: '2', 81: '3', 82: '0', 83: '.',
}

// shiftedKeys are the symbols an email address needs.
var shiftedKeys = map[uint16]rune{
	3:  '@',
	12: '_',
	13: '+',
}

// keyState turns key codes into Keys, tracking the shift keys.
type keyState struct {
	shift bool
}

// event handles one key event. value is 1 for press, 0 for release and
// 2 for autorepeat.
func (s *keyState) event(code uint16, value int32) Key {
	if code == codeLeftShift || code == codeRightShift {
		s.shift = value != 0
		return KeyNone
	}
	if value != 1 {
		return KeyNone
	}

	switch code {
	case codeEnter, codeKPEnter:
		return KeyEnter
	case codeBackspace:
		return KeyDelete
	case codeEsc:
		return KeyEscape
	}

	if s.shift {
		if r, ok := shiftedKeys[code]; ok {
			return Key(r)
		}
	}
	r, ok := plainKeys[code]
	if !ok {
		return KeyNone
	}
	if s.shift {
		r = unicode.ToUpper(r)
	}
	return Key(r)
}

// Keyboard implements Keypad for a USB keyboard or numeric keypad.
type Keyboard struct {
	device *evdev.Evdev
	state  keyState
}

// NewKeyboard opens the input device.
func NewKeyboard(device string) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Printf("Keypad: opened keyboard %s (vendor 0x%04x, product 0x%04x)",
		dev.Name(), dev.ID().Vendor, dev.ID().Product)

	return &Keyboard{device: dev}, nil
}

// Read implements Keypad.Read.
func (k *Keyboard) Read(ctx context.Context) (Key, error) {
	ch := k.device.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return KeyNone, ctx.Err()
		case event := <-ch:
			if event == nil {
				return KeyNone, fmt.Errorf("keyboard device closed")
			}

			switch event.Type.(type) {
			case evdev.KeyType:
				if key := k.state.event(uint16(event.Code), int32(event.Value)); key != KeyNone {
					return key, nil
				}
			}
		}
	}
}

// Close implements Keypad.Close.
func (k *Keyboard) Close() error {
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}
