package buttons

import (
	"testing"
	"time"
)

func TestDebouncer(t *testing.T) {
	now := time.Unix(1000, 0)
	d := newDebouncer(200*time.Millisecond, func() time.Time { return now })

	if !d.accept(Confirm) {
		t.Fatal("First press should be accepted")
	}
	now = now.Add(50 * time.Millisecond)
	if d.accept(Confirm) {
		t.Error("Bounce within the window should be dropped")
	}
	if !d.accept(Cancel) {
		t.Error("Other button should not be affected")
	}
	now = now.Add(200 * time.Millisecond)
	if !d.accept(Confirm) {
		t.Error("Press after the window should be accepted")
	}
}

func TestNewWithoutPins(t *testing.T) {
	b, err := New(Config{}, Handlers{})
	if err != nil || b != nil {
		t.Fatalf("Expected nil buttons, got %v %v", b, err)
	}
	// nil receivers are safe
	b.Light(true, true)
	if err := b.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}

func TestPressCallsHandler(t *testing.T) {
	var got []Button
	b := &Buttons{
		filter:  newDebouncer(time.Second, time.Now),
		onPress: func(which Button) { got = append(got, which) },
	}
	b.press(Cancel)
	b.press(Cancel)
	b.press(Confirm)

	if len(got) != 2 || got[0] != Cancel || got[1] != Confirm {
		t.Errorf("Presses %v", got)
	}
}
