package screens

import (
	"time"

	"givekiosk/donation"
	"givekiosk/keypad"
	"givekiosk/video/screen"
)

// ProcessingScreen shows a spinner while the card reader takes the payment.
type ProcessingScreen struct {
	mgr            *screen.Manager
	sess           Session
	snap           donation.Snapshot
	spinnerTimerID screen.TimerID
	spinnerFrame   int
	spinnerX       int
	spinnerY       int
}

// NewProcessingScreen creates a new processing screen.
func NewProcessingScreen(sess Session) *ProcessingScreen {
	return &ProcessingScreen{sess: sess}
}

func (s *ProcessingScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
	s.snap = s.sess.Snapshot()
	s.spinnerFrame = 0

	// Position spinner below text
	s.spinnerX = (mgr.Width() - spinnerSize) / 2
	s.spinnerY = mgr.Height()/2 + 30

	s.startSpinnerAnimation()
}

func (s *ProcessingScreen) startSpinnerAnimation() {
	s.spinnerTimerID = s.mgr.SetTimeout(100*time.Millisecond, func(scr screen.Screen) {
		if s.spinnerTimerID == 0 {
			return
		}
		s.spinnerFrame = (s.spinnerFrame + 1) % len(spinnerFrames)
		s.updateSpinner()
		s.startSpinnerAnimation()
	})
}

func (s *ProcessingScreen) Update() {
	s.mgr.FillBackground(bgR, bgG, bgB)

	s.mgr.SetFontSize(48)
	s.mgr.DrawCentered("Tap, insert or swipe", float64(s.mgr.Height()/2)-60, 1, 1, 1)

	s.mgr.SetFontSize(24)
	s.mgr.DrawCentered("your card on the reader", float64(s.mgr.Height()/2)-15, 0.9, 0.9, 0.9)

	s.drawSpinner()

	s.mgr.SetFontSize(16)
	s.mgr.DrawCentered("Hold the knob to cancel", float64(s.mgr.Height())-24, 0.8, 0.8, 0.8)

	s.mgr.Flush()
}

func (s *ProcessingScreen) drawSpinner() {
	if s.spinnerFrame < len(spinnerFrames) {
		frame := spinnerFrames[s.spinnerFrame]
		s.mgr.DC().DrawImage(frame, s.spinnerX, s.spinnerY)
	}
}

func (s *ProcessingScreen) updateSpinner() {
	s.mgr.FillRect(s.spinnerX, s.spinnerY, spinnerSize, spinnerSize, bgR, bgG, bgB)
	s.drawSpinner()

	// Flush only spinner area
	s.mgr.FlushRect(s.spinnerX, s.spinnerY, spinnerSize, spinnerSize)
}

func (s *ProcessingScreen) HandleEvent(event screen.Event) bool {
	switch event.Type {
	case screen.EventSession:
		if snap := event.Session(); snap != nil {
			s.snap = *snap
			return true
		}
	case screen.EventKey:
		if key(event) != keypad.KeyEscape {
			return false
		}
		s.sess.Reset()
		return true
	case screen.EventRotaryLongPress:
		// Abandons the checkout on the reader
		s.sess.Reset()
		return true
	}
	return false
}

func (s *ProcessingScreen) Exit() {
	s.spinnerTimerID = 0
}

func (s *ProcessingScreen) Name() string {
	return "Processing"
}
