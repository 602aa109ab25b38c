package chime

import (
	"sync"
	"time"

	"github.com/hjkoskel/govattu"
)

// Servo implements Chime with a PWM servo swinging a striker.
type Servo struct {
	mu     sync.Mutex
	hw     govattu.Vattu
	pin    uint8
	strike int
	rest   int
}

// NewServo creates a servo chime. pin must be a hardware PWM pin.
func NewServo(hw govattu.Vattu, pin uint8, strike, rest int) *Servo {
	hw.PinMode(pin, govattu.ALT5) // ALT5 for PWM0
	hw.PwmSetMode(true, true, false, false)
	hw.PwmSetClock(19)
	hw.Pwm0SetRange(20000)

	s := &Servo{hw: hw, pin: pin, strike: strike, rest: rest}
	s.hw.Pwm0Set(uint32(rest))
	return s
}

// Ring implements Chime.Ring.
func (s *Servo) Ring() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range sweep(s.rest, s.strike) {
		s.hw.Pwm0Set(uint32(p))
		time.Sleep(2 * time.Millisecond)
	}
	for _, p := range sweep(s.strike, s.rest) {
		s.hw.Pwm0Set(uint32(p))
		time.Sleep(2 * time.Millisecond)
	}
	return nil
}

// Release implements Chime.Release.
func (s *Servo) Release() error {
	return s.hw.Close()
}

// sweep returns the positions from from to to, excluding to.
func sweep(from, to int) []int {
	inc := 1
	if to < from {
		inc = -1
	}
	var out []int
	for i := from; i != to; i += inc {
		out = append(out, i)
	}
	return out
}
