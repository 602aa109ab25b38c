package screens

import (
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"givekiosk/donation"
	"givekiosk/keypad"
	"givekiosk/receipt"
	"givekiosk/settings"
	"givekiosk/video/screen"
)

type fakeSession struct {
	mu      sync.Mutex
	snap    donation.Snapshot
	calls   []string
	sendErr error
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) Calls() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}

func (f *fakeSession) Snapshot() donation.Snapshot { return f.snap }
func (f *fakeSession) Begin()                      { f.record("begin") }
func (f *fakeSession) Touch()                      { f.record("touch") }
func (f *fakeSession) PressDigit(d rune)           { f.record("digit:" + string(d)) }
func (f *fakeSession) DeleteDigit()                { f.record("delete") }
func (f *fakeSession) ClearAmount()                { f.record("clear") }
func (f *fakeSession) SubmitCustom() donation.Verdict {
	f.record("submit")
	return donation.VerdictAccept
}
func (f *fakeSession) SelectPreset(i int)     { f.record("preset:" + string(rune('0'+i))) }
func (f *fakeSession) ChooseEmailReceipt()    { f.record("email") }
func (f *fakeSession) DeclineReceipt()        { f.record("decline") }
func (f *fakeSession) PrintReceipt()          { f.record("print") }
func (f *fakeSession) Back()                  { f.record("back") }
func (f *fakeSession) TypeEmail(text string)  { f.record("type:" + text) }
func (f *fakeSession) EraseEmail()            { f.record("erase") }
func (f *fakeSession) Done()                  { f.record("done") }
func (f *fakeSession) Reset()                 { f.record("reset") }
func (f *fakeSession) SendReceipt() error {
	f.record("send")
	return f.sendErr
}

type staticSettings struct {
	kiosk settings.Kiosk
	org   settings.Organization
}

func (s staticSettings) Kiosk() settings.Kiosk               { return s.kiosk }
func (s staticSettings) Organization() settings.Organization { return s.org }

func newTestManager(t *testing.T, sess *fakeSession, homeEnabled bool) *screen.Manager {
	t.Helper()
	st := staticSettings{
		kiosk: settings.Kiosk{
			Presets:         []settings.Preset{{Amount: "10"}, {Amount: "25"}},
			HomePageEnabled: homeEnabled,
			Layout:          settings.Layout{Headline: "Give today"},
		},
		org: settings.Organization{Name: "Food Bank"},
	}
	mgr := screen.NewHeadless(320, 240)
	// drop timer callbacks so redraws never race the test
	mgr.SetDispatcher(func(func()) {})
	Register(mgr, sess, st, "Sign in at http://kiosk.local:8080/square/login")
	return mgr
}

func keyEvent(k keypad.Key) screen.Event {
	return screen.Event{Type: screen.EventKey, Data: screen.KeyData{Key: k}}
}

func turn(delta int) screen.Event {
	return screen.Event{Type: screen.EventRotaryTurn, Data: screen.RotaryData{Delta: delta}}
}

func TestHomeBeginsOnInput(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, true)
	mgr.SwitchTo(screen.ScreenHome)

	if mgr.SendEvent(screen.Event{Type: screen.EventSession, Data: donation.Snapshot{}}) {
		t.Error("Home should ignore session updates")
	}
	if !mgr.SendEvent(keyEvent('5')) {
		t.Fatal("Key not handled")
	}
	if sess.Calls() != "begin,touch" {
		t.Errorf("Calls %q", sess.Calls())
	}
	if mgr.CurrentID() != screen.ScreenSelectAmount {
		t.Errorf("Current screen %s", mgr.CurrentID())
	}
}

func TestSelectAmountPresets(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, false)
	mgr.SwitchTo(screen.ScreenSelectAmount)

	mgr.SendEvent(turn(1))
	mgr.SendEvent(screen.Event{Type: screen.EventRotaryPress})
	if got := sess.Calls(); got != "touch,touch,preset:1" {
		t.Errorf("Calls %q", got)
	}

	// wraps from the first preset back to the custom field
	sess.calls = nil
	mgr.SendEvent(turn(-2))
	mgr.SendEvent(keyEvent(keypad.KeyEnter))
	if got := sess.Calls(); got != "touch,submit" {
		t.Errorf("Calls %q", got)
	}
}

func TestSelectAmountCustomEntry(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, true)
	mgr.SwitchTo(screen.ScreenSelectAmount)

	mgr.SendEvent(keyEvent('4'))
	mgr.SendEvent(screen.Event{Type: screen.EventSession, Data: donation.Snapshot{Amount: "4"}})
	mgr.SendEvent(keyEvent(keypad.KeyDelete))
	mgr.SendEvent(keyEvent(keypad.KeyEnter))
	mgr.SendEvent(screen.Event{Type: screen.EventShake})
	mgr.SendEvent(keyEvent(keypad.KeyEscape))

	if got := sess.Calls(); got != "touch,digit:4,delete,submit,clear" {
		t.Errorf("Calls %q", got)
	}

	mgr.SendEvent(screen.Event{Type: screen.EventSession, Data: donation.Snapshot{}})
	mgr.SendEvent(keyEvent(keypad.KeyEscape))
	if mgr.CurrentID() != screen.ScreenHome {
		t.Errorf("Escape with no amount should go home, at %s", mgr.CurrentID())
	}
}

func TestProcessingCancel(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, false)
	mgr.SwitchTo(screen.ScreenProcessing)

	if mgr.SendEvent(keyEvent('1')) {
		t.Error("Digits should be ignored while processing")
	}
	mgr.SendEvent(screen.Event{Type: screen.EventRotaryLongPress})
	if sess.Calls() != "reset" {
		t.Errorf("Calls %q", sess.Calls())
	}
}

func TestReceiptPromptOptions(t *testing.T) {
	sess := &fakeSession{snap: donation.Snapshot{
		State:    donation.StateReceiptPrompt,
		Donation: &donation.Donation{Amount: decimal.NewFromInt(25)},
	}}
	mgr := newTestManager(t, sess, false)
	mgr.SwitchTo(screen.ScreenReceiptPrompt)

	// email, no receipt
	mgr.SendEvent(turn(1))
	mgr.SendEvent(screen.Event{Type: screen.EventRotaryPress})
	if got := sess.Calls(); got != "touch,decline" {
		t.Errorf("Calls %q", got)
	}

	sess.calls = nil
	snap := sess.snap
	snap.CanPrint = true
	mgr.SendEvent(screen.Event{Type: screen.EventSession, Data: snap})
	mgr.SendEvent(keyEvent('p'))
	mgr.SendEvent(screen.Event{Type: screen.EventButton, Data: screen.ButtonData{ID: screen.ButtonConfirm}})
	if got := sess.Calls(); got != "print,email" {
		t.Errorf("Calls %q", got)
	}
}

func TestEmailEntry(t *testing.T) {
	sess := &fakeSession{sendErr: receipt.ErrInvalidEmail}
	mgr := newTestManager(t, sess, false)
	set := Register(mgr, sess, staticSettings{}, "")
	mgr.SwitchTo(screen.ScreenEmailEntry)

	mgr.SendEvent(keyEvent(keypad.KeyEnter))
	if set.EmailEntry.hint == "" {
		t.Error("Invalid address should show a hint")
	}
	mgr.SendEvent(keyEvent('a'))
	if set.EmailEntry.hint != "" {
		t.Error("Typing should clear the hint")
	}

	mgr.SendEvent(turn(-1)) // picker wraps to '+'
	mgr.SendEvent(screen.Event{Type: screen.EventRotaryPress})
	mgr.SendEvent(keyEvent(keypad.KeyDelete))
	mgr.SendEvent(keyEvent(keypad.KeyEscape))

	if got := sess.Calls(); got != "send,type:a,touch,type:+,erase,back" {
		t.Errorf("Calls %q", got)
	}
}

func TestThankYouAnyInputFinishes(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, false)
	mgr.SwitchTo(screen.ScreenThankYou)

	mgr.SendEvent(screen.Event{Type: screen.EventButton, Data: screen.ButtonData{ID: screen.ButtonCancel}})
	if sess.Calls() != "done" {
		t.Errorf("Calls %q", sess.Calls())
	}
}

func TestAuthRequiredDismiss(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, false)
	mgr.SwitchTo(screen.ScreenAuthRequired)

	mgr.SendEvent(screen.Event{Type: screen.EventRotaryPress})
	if mgr.CurrentID() != screen.ScreenSelectAmount {
		t.Errorf("Current screen %s", mgr.CurrentID())
	}
}

func TestSelectAmountArmsIdleOnEntry(t *testing.T) {
	sess := &fakeSession{}
	mgr := newTestManager(t, sess, false)

	mgr.SwitchTo(screen.ScreenSelectAmount)
	if got := sess.Calls(); got != "touch" {
		t.Errorf("Calls %q", got)
	}

	// coming back after a donation arms it again
	mgr.SwitchTo(screen.ScreenThankYou)
	mgr.SwitchTo(screen.ScreenSelectAmount)
	if got := sess.Calls(); got != "touch,touch" {
		t.Errorf("Calls %q", got)
	}
}

func TestCoverRect(t *testing.T) {
	tests := []struct {
		name       string
		zoom       float64
		panX, panY float64
		want       image.Rectangle
	}{
		{"centered", 1, 0, 0, image.Rect(-50, 0, 150, 100)},
		{"left edge", 1, -1, 0, image.Rect(0, 0, 200, 100)},
		{"right edge", 1, 1, 0, image.Rect(-100, 0, 100, 100)},
		{"zoomed", 2, 0, 0, image.Rect(-150, -50, 250, 150)},
		{"zoom unset", 0, 0, 0, image.Rect(-50, 0, 150, 100)},
		{"pan clamped", 1, 4, 0, image.Rect(-100, 0, 100, 100)},
	}
	for _, tt := range tests {
		got := CoverRect(200, 100, 100, 100, tt.zoom, tt.panX, tt.panY)
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTextTop(t *testing.T) {
	tests := []struct {
		pos  settings.Position
		fine int
		want float64
	}{
		{settings.PositionCenter, 0, 75},
		{settings.PositionCenter, 10, 85},
		{settings.PositionTop, 0, 24},
		{settings.PositionBottom, -5, 115},
		{"", 0, 75},
	}
	for _, tt := range tests {
		if got := TextTop(tt.pos, tt.fine, 200, 50); got != tt.want {
			t.Errorf("TextTop(%q, %d) = %v, want %v", tt.pos, tt.fine, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	if wrap(0, -1, 3) != 2 || wrap(2, 1, 3) != 0 || wrap(1, 7, 3) != 2 || wrap(0, 1, 0) != 0 {
		t.Error("wrap did not wrap")
	}
}
