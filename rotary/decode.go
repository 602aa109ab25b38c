package rotary

import "time"

// DefaultLongPress is how long the knob must be held for a long press.
const DefaultLongPress = 2 * time.Second

// Config holds configuration for a rotary encoder.
type Config struct {
	Chip           string `yaml:"chip"`
	CLKPin         int    `yaml:"clk_pin"`
	DTPin          int    `yaml:"dt_pin"`
	ButtonPin      int    `yaml:"button_pin"`
	LongPressMilli int    `yaml:"long_press_millis"`
}

func (c Config) longPress() time.Duration {
	if c.LongPressMilli <= 0 {
		return DefaultLongPress
	}
	return time.Duration(c.LongPressMilli) * time.Millisecond
}

// Handlers holds callback functions for rotary events.
type Handlers struct {
	OnTurn      func(delta int) // Called with +1 (CW) or -1 (CCW)
	OnPress     func()          // Called when the button is released after a short press
	OnLongPress func()          // Called when the button is released after a long press
}

// quadrature tracks the two encoder lines and reports steps on CLK
// rising edges.
type quadrature struct {
	lastCLK int
	lastDT  int
}

// clk records a CLK edge and returns the step it makes, or 0.
func (q *quadrature) clk(level int) int {
	q.lastCLK = level
	if level != 1 {
		return 0
	}
	if q.lastDT == 0 {
		return 1
	}
	return -1
}

func (q *quadrature) dt(level int) {
	q.lastDT = level
}

// pressTimer classifies button presses by hold time. Timestamps are
// the event times reported by the kernel.
type pressTimer struct {
	long    time.Duration
	down    time.Duration
	pressed bool
}

// press records the button going down.
func (p *pressTimer) press(at time.Duration) {
	p.down = at
	p.pressed = true
}

// release records the button coming up and reports whether it was a
// long press. ok is false for a release without a matching press.
func (p *pressTimer) release(at time.Duration) (long, ok bool) {
	if !p.pressed {
		return false, false
	}
	p.pressed = false
	return at-p.down >= p.long, true
}
