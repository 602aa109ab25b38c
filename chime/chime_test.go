package chime

import (
	"testing"
	"time"
)

type fakePins struct {
	log    []string
	closed bool
}

func (f *fakePins) PinSet(pin uint8)   { f.log = append(f.log, "set") }
func (f *fakePins) PinClear(pin uint8) { f.log = append(f.log, "clear") }
func (f *fakePins) Close() error {
	f.closed = true
	return nil
}

func TestRelayPulse(t *testing.T) {
	tests := []struct {
		onHigh bool
		want   []string
	}{
		{true, []string{"set", "clear"}},
		{false, []string{"clear", "set"}},
	}

	for _, tt := range tests {
		hw := &fakePins{}
		r := newRelay(hw, 17, tt.onHigh, 80*time.Millisecond)
		var slept time.Duration
		r.sleep = func(d time.Duration) { slept = d }

		if err := r.Ring(); err != nil {
			t.Fatalf("Ring: %v", err)
		}
		if len(hw.log) != 2 || hw.log[0] != tt.want[0] || hw.log[1] != tt.want[1] {
			t.Errorf("onHigh=%v: pin log %v, want %v", tt.onHigh, hw.log, tt.want)
		}
		if slept != 80*time.Millisecond {
			t.Errorf("Pulse length %v", slept)
		}
		r.Release()
		if !hw.closed {
			t.Error("Release did not close hardware")
		}
	}
}

func TestSweep(t *testing.T) {
	if got := sweep(3, 6); len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Errorf("sweep(3,6) = %v", got)
	}
	if got := sweep(6, 3); len(got) != 3 || got[0] != 6 || got[2] != 4 {
		t.Errorf("sweep(6,3) = %v", got)
	}
	if got := sweep(4, 4); len(got) != 0 {
		t.Errorf("sweep(4,4) = %v", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	if (Config{}).pulse() != 150*time.Millisecond {
		t.Error("Expected default pulse of 150ms")
	}
	c, err := New(Config{Type: "relay_high"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.(*Noop); !ok {
		t.Errorf("Expected Noop without a pin, got %T", c)
	}
}
