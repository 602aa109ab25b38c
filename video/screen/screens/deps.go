package screens

import (
	"givekiosk/donation"
	"givekiosk/keypad"
	"givekiosk/settings"
	"givekiosk/video/screen"
)

// Session is the donation flow the screens drive. *donation.Session
// implements it.
type Session interface {
	Snapshot() donation.Snapshot
	Begin()
	Touch()
	PressDigit(d rune)
	DeleteDigit()
	ClearAmount()
	SubmitCustom() donation.Verdict
	SelectPreset(i int)
	ChooseEmailReceipt()
	DeclineReceipt()
	PrintReceipt()
	Back()
	TypeEmail(text string)
	EraseEmail()
	SendReceipt() error
	Done()
	Reset()
}

// Settings provides the operator configuration. *settings.Store
// implements it.
type Settings interface {
	Kiosk() settings.Kiosk
	Organization() settings.Organization
}

// Background colour shared by the donor screens.
const (
	bgR, bgG, bgB = 0, 0.4, 0.6
)

// money formats a whole or decimal amount string for display.
func money(amount string) string {
	if amount == "" {
		return "$0"
	}
	return "$" + amount
}

// isInput reports whether event is a donor action (any key, knob or
// button), as opposed to a session update.
func isInput(event screen.Event) bool {
	switch event.Type {
	case screen.EventKey, screen.EventRotaryTurn, screen.EventRotaryPress,
		screen.EventRotaryLongPress, screen.EventButton:
		return true
	}
	return false
}

// key returns the key of a key event, or keypad.KeyNone.
func key(event screen.Event) keypad.Key {
	if k := event.Key(); k != nil {
		return k.Key
	}
	return keypad.KeyNone
}

// button returns the button of a button event, or -1.
func button(event screen.Event) screen.ButtonID {
	if b := event.Button(); b != nil {
		return b.ID
	}
	return -1
}

// wrap moves a cursor by delta within n entries, wrapping at both ends.
func wrap(cursor, delta, n int) int {
	if n <= 0 {
		return 0
	}
	c := (cursor + delta) % n
	if c < 0 {
		c += n
	}
	return c
}

// Set holds the kiosk screens after registration.
type Set struct {
	Home          *HomeScreen
	SelectAmount  *SelectAmountScreen
	Processing    *ProcessingScreen
	ReceiptPrompt *ReceiptPromptScreen
	EmailEntry    *EmailEntryScreen
	ThankYou      *ThankYouScreen
	AuthRequired  *AuthRequiredScreen
	Unavailable   *UnavailableScreen
	Shutdown      *ShutdownScreen
}

// Register creates every kiosk screen and registers it with mgr.
// authHint is shown to staff when the payment provider needs signing in.
func Register(mgr *screen.Manager, sess Session, st Settings, authHint string) *Set {
	set := &Set{
		Home:          NewHomeScreen(sess, st),
		SelectAmount:  NewSelectAmountScreen(sess, st),
		Processing:    NewProcessingScreen(sess),
		ReceiptPrompt: NewReceiptPromptScreen(sess),
		EmailEntry:    NewEmailEntryScreen(sess),
		ThankYou:      NewThankYouScreen(sess, st),
		AuthRequired:  NewAuthRequiredScreen(authHint),
		Unavailable:   NewUnavailableScreen(),
		Shutdown:      NewShutdownScreen(),
	}
	mgr.Register(screen.ScreenHome, set.Home)
	mgr.Register(screen.ScreenSelectAmount, set.SelectAmount)
	mgr.Register(screen.ScreenProcessing, set.Processing)
	mgr.Register(screen.ScreenReceiptPrompt, set.ReceiptPrompt)
	mgr.Register(screen.ScreenEmailEntry, set.EmailEntry)
	mgr.Register(screen.ScreenThankYou, set.ThankYou)
	mgr.Register(screen.ScreenAuthRequired, set.AuthRequired)
	mgr.Register(screen.ScreenUnavailable, set.Unavailable)
	mgr.Register(screen.ScreenShutdown, set.Shutdown)
	return set
}
