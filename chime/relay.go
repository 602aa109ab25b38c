package chime

import (
	"sync"
	"time"

	"github.com/hjkoskel/govattu"
)

// pins is the part of govattu.Vattu a relay drives.
type pins interface {
	PinSet(pin uint8)
	PinClear(pin uint8)
	Close() error
}

type vattuPins struct {
	hw govattu.Vattu
}

func (v *vattuPins) PinSet(pin uint8)   { v.hw.PinSet(pin) }
func (v *vattuPins) PinClear(pin uint8) { v.hw.PinClear(pin) }
func (v *vattuPins) Close() error       { return v.hw.Close() }

// Relay implements Chime by pulsing a solenoid relay.
type Relay struct {
	mu     sync.Mutex
	hw     pins
	pin    uint8
	onHigh bool
	pulse  time.Duration
	sleep  func(time.Duration)
}

// NewRelay creates a relay chime on pin. onHigh selects the active level.
func NewRelay(hw govattu.Vattu, pin uint8, onHigh bool, pulse time.Duration) *Relay {
	hw.PinMode(pin, govattu.ALToutput)
	r := newRelay(&vattuPins{hw: hw}, pin, onHigh, pulse)
	r.off()
	return r
}

func newRelay(hw pins, pin uint8, onHigh bool, pulse time.Duration) *Relay {
	return &Relay{hw: hw, pin: pin, onHigh: onHigh, pulse: pulse, sleep: time.Sleep}
}

// Ring implements Chime.Ring.
func (r *Relay) Ring() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.on()
	r.sleep(r.pulse)
	r.off()
	return nil
}

// Release implements Chime.Release.
func (r *Relay) Release() error {
	r.off()
	return r.hw.Close()
}

func (r *Relay) on() {
	if r.onHigh {
		r.hw.PinSet(r.pin)
	} else {
		r.hw.PinClear(r.pin)
	}
}

func (r *Relay) off() {
	if r.onHigh {
		r.hw.PinClear(r.pin)
	} else {
		r.hw.PinSet(r.pin)
	}
}
