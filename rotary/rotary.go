//go:build linux

package rotary

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Rotary handles a rotary encoder input device.
type Rotary struct {
	mu       sync.Mutex
	dtLine   *gpiocdev.Line
	clkLine  *gpiocdev.Line
	btnLine  *gpiocdev.Line
	dtPin    int
	clkPin   int
	quad     quadrature
	button   pressTimer
	pos      int64
	handlers Handlers
}

// New creates a new rotary encoder handler.
// Returns nil if config has no pins specified (CLKPin and DTPin both 0).
func New(cfg Config, handlers Handlers) (*Rotary, error) {
	if cfg.CLKPin == 0 && cfg.DTPin == 0 {
		return nil, nil
	}

	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}

	debounceRotary := 250 * time.Microsecond
	debounceButton := 2 * time.Millisecond

	r := &Rotary{
		dtPin:    cfg.DTPin,
		clkPin:   cfg.CLKPin,
		button:   pressTimer{long: cfg.longPress()},
		handlers: handlers,
	}

	var err error

	r.dtLine, err = gpiocdev.RequestLine(cfg.Chip, cfg.DTPin,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounceRotary),
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		return nil, err
	}

	r.clkLine, err = gpiocdev.RequestLine(cfg.Chip, cfg.CLKPin,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounceRotary),
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		r.dtLine.Close()
		return nil, err
	}

	// Both edges so hold time can be measured
	if cfg.ButtonPin > 0 {
		r.btnLine, err = gpiocdev.RequestLine(cfg.Chip, cfg.ButtonPin,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debounceButton),
			gpiocdev.WithEventHandler(r.handleButton))
		if err != nil {
			r.dtLine.Close()
			r.clkLine.Close()
			return nil, err
		}
	}

	log.Printf("Rotary: clk=%d dt=%d button=%d on %s", cfg.CLKPin, cfg.DTPin, cfg.ButtonPin, cfg.Chip)
	return r, nil
}

func (r *Rotary) handleEvent(evt gpiocdev.LineEvent) {
	var level int
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		level = 1
	case gpiocdev.LineEventFallingEdge:
		level = 0
	default:
		return
	}

	r.mu.Lock()
	step := 0
	switch evt.Offset {
	case r.clkPin:
		step = r.quad.clk(level)
	case r.dtPin:
		r.quad.dt(level)
	}
	r.mu.Unlock()

	if step == 0 {
		return
	}
	atomic.AddInt64(&r.pos, int64(step))
	if r.handlers.OnTurn != nil {
		r.handlers.OnTurn(step)
	}
}

// The button pulls the line low while held.
func (r *Rotary) handleButton(evt gpiocdev.LineEvent) {
	r.mu.Lock()
	var long, ok bool
	switch evt.Type {
	case gpiocdev.LineEventFallingEdge:
		r.button.press(evt.Timestamp)
	case gpiocdev.LineEventRisingEdge:
		long, ok = r.button.release(evt.Timestamp)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if long {
		if r.handlers.OnLongPress != nil {
			r.handlers.OnLongPress()
		}
		return
	}
	if r.handlers.OnPress != nil {
		r.handlers.OnPress()
	}
}

// Position returns the current encoder position.
func (r *Rotary) Position() int64 {
	return atomic.LoadInt64(&r.pos)
}

// Release releases GPIO resources.
func (r *Rotary) Release() error {
	if r == nil {
		return nil
	}
	if r.dtLine != nil {
		r.dtLine.Close()
	}
	if r.clkLine != nil {
		r.clkLine.Close()
	}
	if r.btnLine != nil {
		r.btnLine.Close()
	}
	return nil
}
