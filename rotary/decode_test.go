package rotary

import (
	"testing"
	"time"
)

func TestQuadratureDirection(t *testing.T) {
	var q quadrature

	// DT low at the CLK rising edge is clockwise
	q.dt(0)
	if got := q.clk(1); got != 1 {
		t.Errorf("CW step = %d", got)
	}
	if got := q.clk(0); got != 0 {
		t.Errorf("Falling edge step = %d", got)
	}

	q.dt(1)
	if got := q.clk(1); got != -1 {
		t.Errorf("CCW step = %d", got)
	}
}

func TestPressTimer(t *testing.T) {
	p := pressTimer{long: 2 * time.Second}

	if _, ok := p.release(time.Second); ok {
		t.Error("Release without press should be ignored")
	}

	p.press(10 * time.Second)
	if long, ok := p.release(10*time.Second + 300*time.Millisecond); !ok || long {
		t.Errorf("Short press: long=%v ok=%v", long, ok)
	}

	p.press(20 * time.Second)
	if long, ok := p.release(22 * time.Second); !ok || !long {
		t.Errorf("Long press: long=%v ok=%v", long, ok)
	}
}

func TestConfigLongPress(t *testing.T) {
	if (Config{}).longPress() != DefaultLongPress {
		t.Error("Expected default long press")
	}
	if (Config{LongPressMilli: 500}).longPress() != 500*time.Millisecond {
		t.Error("Expected configured long press")
	}
}
