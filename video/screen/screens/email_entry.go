package screens

import (
	"errors"

	"givekiosk/donation"
	"givekiosk/keypad"
	"givekiosk/receipt"
	"givekiosk/video/screen"
)

// pickerChars are offered by the knob when there is no keyboard.
const pickerChars = "abcdefghijklmnopqrstuvwxyz0123456789@.-_+"

// EmailEntryScreen collects the donor's email address for the receipt.
// A keyboard types directly; the knob picks one character at a time.
type EmailEntryScreen struct {
	mgr    *screen.Manager
	sess   Session
	snap   donation.Snapshot
	picker int
	hint   string // local validation message
}

// NewEmailEntryScreen creates a new email entry screen.
func NewEmailEntryScreen(sess Session) *EmailEntryScreen {
	return &EmailEntryScreen{sess: sess}
}

func (s *EmailEntryScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
	s.snap = s.sess.Snapshot()
	s.picker = 0
	s.hint = ""
}

func (s *EmailEntryScreen) Update() {
	s.mgr.FillBackground(bgR, bgG, bgB)
	w, h := s.mgr.Width(), float64(s.mgr.Height())

	s.mgr.SetFontSize(32)
	s.mgr.DrawCentered("Where should we send it?", h*0.14, 1, 1, 1)

	// entry field
	s.mgr.FillRect(w/10, int(h*0.28), w*8/10, int(h*0.16), 1, 1, 1)
	s.mgr.SetFontSize(24)
	text := s.snap.Email + "_"
	if s.snap.EmailValid {
		s.mgr.DrawCentered(text, h*0.36, 0, 0.45, 0.15)
	} else {
		s.mgr.DrawCentered(text, h*0.36, 0.1, 0.1, 0.1)
	}

	// knob character picker
	s.mgr.SetFontSize(28)
	s.mgr.DrawCentered(string(pickerChars[s.picker]), h*0.56, 1, 0.85, 0)
	s.mgr.SetFontSize(14)
	s.mgr.DrawCentered("turn to pick a letter, press to add it", h*0.64, 0.85, 0.85, 0.85)

	msg, r, g, b := "", 1.0, 0.6, 0.6
	switch {
	case s.snap.Sending:
		msg, r, g, b = "Sending...", 1, 1, 0
	case s.snap.ReceiptError != "":
		msg = s.snap.ReceiptError
	case s.hint != "":
		msg = s.hint
	}
	if msg != "" {
		s.mgr.SetFontSize(18)
		s.mgr.DrawWrapped(msg, h*0.78, float64(w)*0.85, r, g, b)
	}

	s.mgr.SetFontSize(14)
	s.mgr.DrawCentered("Enter to send, Esc to go back", h*0.94, 0.85, 0.85, 0.85)
	s.mgr.Flush()
}

func (s *EmailEntryScreen) HandleEvent(event screen.Event) bool {
	switch event.Type {
	case screen.EventSession:
		if snap := event.Session(); snap != nil {
			s.snap = *snap
			s.Update()
			return true
		}

	case screen.EventKey:
		k := key(event)
		switch k {
		case keypad.KeyEnter:
			s.send()
		case keypad.KeyDelete:
			s.hint = ""
			s.sess.EraseEmail()
		case keypad.KeyEscape:
			s.sess.Back()
		case keypad.KeyNone:
			return false
		default:
			s.hint = ""
			s.sess.TypeEmail(string(rune(k)))
		}
		return true

	case screen.EventRotaryTurn:
		if rotary := event.Rotary(); rotary != nil {
			s.picker = wrap(s.picker, rotary.Delta, len(pickerChars))
			s.sess.Touch()
			s.Update()
			return true
		}

	case screen.EventRotaryPress:
		s.hint = ""
		s.sess.TypeEmail(string(pickerChars[s.picker]))
		return true

	case screen.EventRotaryLongPress:
		s.send()
		return true

	case screen.EventButton:
		switch button(event) {
		case screen.ButtonConfirm:
			s.send()
		case screen.ButtonCancel:
			if s.snap.Email != "" {
				s.sess.EraseEmail()
			} else {
				s.sess.Back()
			}
		}
		return true
	}
	return false
}

func (s *EmailEntryScreen) send() {
	if err := s.sess.SendReceipt(); errors.Is(err, receipt.ErrInvalidEmail) {
		s.hint = "Please enter a valid email address"
		s.Update()
	}
}

func (s *EmailEntryScreen) Exit() {
	s.hint = ""
}

func (s *EmailEntryScreen) Name() string {
	return "EmailEntry"
}
