package screens

import (
	"givekiosk/donation"
	"givekiosk/keypad"
	"givekiosk/video/screen"
)

type receiptOption int

const (
	optionEmail receiptOption = iota
	optionPrint
	optionNone
)

func (o receiptOption) label() string {
	switch o {
	case optionEmail:
		return "Email me a receipt"
	case optionPrint:
		return "Print a receipt"
	default:
		return "No receipt"
	}
}

// ReceiptPromptScreen thanks the donor and offers a receipt.
type ReceiptPromptScreen struct {
	mgr     *screen.Manager
	sess    Session
	snap    donation.Snapshot
	options []receiptOption
	cursor  int
}

// NewReceiptPromptScreen creates a new receipt prompt screen.
func NewReceiptPromptScreen(sess Session) *ReceiptPromptScreen {
	return &ReceiptPromptScreen{sess: sess}
}

func (s *ReceiptPromptScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
	s.setSnapshot(s.sess.Snapshot())
	s.cursor = 0
}

func (s *ReceiptPromptScreen) setSnapshot(snap donation.Snapshot) {
	s.snap = snap
	s.options = s.options[:0]
	s.options = append(s.options, optionEmail)
	if snap.CanPrint {
		s.options = append(s.options, optionPrint)
	}
	s.options = append(s.options, optionNone)
	if s.cursor >= len(s.options) {
		s.cursor = len(s.options) - 1
	}
}

func (s *ReceiptPromptScreen) Update() {
	s.mgr.FillBackground(0, 0.55, 0.25)
	h := float64(s.mgr.Height())

	s.mgr.SetFontSize(40)
	s.mgr.DrawCentered("Thank you!", h*0.14, 1, 1, 1)
	if s.snap.Donation != nil {
		s.mgr.SetFontSize(24)
		s.mgr.DrawCentered("Your gift of $"+s.snap.Donation.Amount.StringFixed(2)+" was received", h*0.26, 1, 1, 1)
	}

	s.mgr.SetFontSize(24)
	for i, o := range s.options {
		y := h*0.42 + float64(i)*h*0.13
		if i == s.cursor {
			s.mgr.FillRect(s.mgr.Width()/6, int(y-h*0.055), s.mgr.Width()*2/3, int(h*0.11), 1, 0.85, 0)
			s.mgr.DrawCentered(o.label(), y, 0, 0.2, 0.1)
		} else {
			s.mgr.DrawCentered(o.label(), y, 1, 1, 1)
		}
	}

	switch {
	case s.snap.Printing:
		s.mgr.SetFontSize(18)
		s.mgr.DrawCentered("Printing...", h*0.92, 1, 1, 0)
	case s.snap.ReceiptError != "":
		s.mgr.SetFontSize(18)
		s.mgr.DrawCentered(s.snap.ReceiptError, h*0.92, 1, 0.6, 0.6)
	}

	s.mgr.Flush()
}

func (s *ReceiptPromptScreen) HandleEvent(event screen.Event) bool {
	switch event.Type {
	case screen.EventSession:
		if snap := event.Session(); snap != nil {
			s.setSnapshot(*snap)
			s.Update()
			return true
		}

	case screen.EventKey:
		switch key(event) {
		case 'e', 'E', '1':
			s.choose(optionEmail)
		case 'p', 'P', '2':
			s.choose(optionPrint)
		case 'n', 'N', '3', keypad.KeyEscape:
			s.choose(optionNone)
		case keypad.KeyEnter:
			s.choose(s.options[s.cursor])
		default:
			return false
		}
		return true

	case screen.EventRotaryTurn:
		if rotary := event.Rotary(); rotary != nil {
			s.cursor = wrap(s.cursor, rotary.Delta, len(s.options))
			s.sess.Touch()
			s.Update()
			return true
		}

	case screen.EventRotaryPress:
		s.choose(s.options[s.cursor])
		return true

	case screen.EventButton:
		switch button(event) {
		case screen.ButtonConfirm:
			s.choose(optionEmail)
		case screen.ButtonCancel:
			s.choose(optionNone)
		}
		return true
	}
	return false
}

func (s *ReceiptPromptScreen) choose(o receiptOption) {
	switch o {
	case optionEmail:
		s.sess.ChooseEmailReceipt()
	case optionPrint:
		s.sess.PrintReceipt()
	case optionNone:
		s.sess.DeclineReceipt()
	}
}

func (s *ReceiptPromptScreen) Exit() {}

func (s *ReceiptPromptScreen) Name() string {
	return "ReceiptPrompt"
}
