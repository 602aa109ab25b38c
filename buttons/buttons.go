package buttons

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/warthog618/gpio"
)

// Button identifies one of the two illuminated push buttons.
type Button int

const (
	Confirm Button = iota // green: pay, email receipt, done
	Cancel                // red: back, no receipt
)

func (b Button) String() string {
	if b == Confirm {
		return "confirm"
	}
	return "cancel"
}

// Config holds the BCM pin numbers of the buttons and their LEDs.
// Unset pins are not used.
type Config struct {
	ConfirmPin *int `yaml:"confirm_pin"`
	CancelPin  *int `yaml:"cancel_pin"`
	ConfirmLED *int `yaml:"confirm_led"`
	CancelLED  *int `yaml:"cancel_led"`
}

func (c Config) enabled() bool {
	return c.ConfirmPin != nil || c.CancelPin != nil
}

// Handlers holds callback functions for button events.
type Handlers struct {
	OnPress func(b Button)
}

const debounce = 200 * time.Millisecond

// Buttons watches the push buttons and drives their LEDs.
type Buttons struct {
	mu      sync.Mutex
	pins    []*gpio.Pin
	leds    map[Button]*gpio.Pin
	filter  *debouncer
	onPress func(Button)
}

// New opens the GPIO chip and starts watching the configured buttons.
// Returns nil if no button pins are configured.
func New(cfg Config, handlers Handlers) (*Buttons, error) {
	if !cfg.enabled() {
		return nil, nil
	}

	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	b := &Buttons{
		leds:    make(map[Button]*gpio.Pin),
		filter:  newDebouncer(debounce, time.Now),
		onPress: handlers.OnPress,
	}

	watch := func(pinNo *int, which Button) error {
		if pinNo == nil {
			return nil
		}
		unexport(*pinNo)
		pin := gpio.NewPin(*pinNo)
		pin.Input()
		pin.PullUp()
		if err := pin.Watch(gpio.EdgeFalling, func(*gpio.Pin) { b.press(which) }); err != nil {
			return fmt.Errorf("watch %s pin %d: %w", which, *pinNo, err)
		}
		b.pins = append(b.pins, pin)
		return nil
	}
	if err := watch(cfg.ConfirmPin, Confirm); err != nil {
		b.Release()
		return nil, err
	}
	if err := watch(cfg.CancelPin, Cancel); err != nil {
		b.Release()
		return nil, err
	}

	for which, pinNo := range map[Button]*int{Confirm: cfg.ConfirmLED, Cancel: cfg.CancelLED} {
		if pinNo == nil {
			continue
		}
		led := gpio.NewPin(*pinNo)
		led.Output()
		led.Low()
		b.leds[which] = led
	}

	log.Printf("Buttons: watching %d buttons", len(b.pins))
	return b, nil
}

func (b *Buttons) press(which Button) {
	if !b.filter.accept(which) {
		return
	}
	if b.onPress != nil {
		b.onPress(which)
	}
}

// Light turns the LEDs of the buttons on or off to show which are active.
func (b *Buttons) Light(confirm, cancel bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	set := func(which Button, on bool) {
		led, ok := b.leds[which]
		if !ok {
			return
		}
		if on {
			led.High()
		} else {
			led.Low()
		}
	}
	set(Confirm, confirm)
	set(Cancel, cancel)
}

// Release stops watching the buttons and turns off the LEDs.
func (b *Buttons) Release() error {
	if b == nil {
		return nil
	}
	b.Light(false, false)
	for _, pin := range b.pins {
		pin.Unwatch()
	}
	return gpio.Close()
}

// unexport frees a pin left exported through sysfs so it can be watched.
func unexport(pin int) {
	f, err := os.OpenFile("/sys/class/gpio/unexport", os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write([]byte(fmt.Sprintf("%d\n", pin)))
}

// debouncer drops presses of the same button that come too close together.
type debouncer struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[Button]time.Time
}

func newDebouncer(window time.Duration, now func() time.Time) *debouncer {
	return &debouncer{window: window, now: now, last: make(map[Button]time.Time)}
}

func (d *debouncer) accept(b Button) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.now()
	if last, ok := d.last[b]; ok && t.Sub(last) < d.window {
		return false
	}
	d.last[b] = t
	return true
}
