package screens

import (
	"givekiosk/donation"
	"givekiosk/video/screen"
)

// ThankYouScreen closes the donation. The session returns to idle after
// a few seconds or on any input.
type ThankYouScreen struct {
	mgr  *screen.Manager
	sess Session
	st   Settings
	snap donation.Snapshot
}

// NewThankYouScreen creates a new thank you screen.
func NewThankYouScreen(sess Session, st Settings) *ThankYouScreen {
	return &ThankYouScreen{sess: sess, st: st}
}

func (s *ThankYouScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
	s.snap = s.sess.Snapshot()
}

func (s *ThankYouScreen) Update() {
	s.mgr.FillBackground(0, 0.6, 0)
	h := float64(s.mgr.Height())

	s.mgr.SetFontSize(56)
	s.mgr.DrawCentered("Thank you!", h/2-50, 1, 1, 1)

	s.mgr.SetFontSize(24)
	if name := s.st.Organization().Name; name != "" {
		s.mgr.DrawCentered("from everyone at "+name, h/2+10, 0.9, 0.9, 0.9)
	}
	if s.snap.Donation != nil {
		s.mgr.DrawCentered("$"+s.snap.Donation.Amount.StringFixed(2), h/2+50, 1, 1, 0)
	}

	s.mgr.SetFontSize(18)
	s.mgr.DrawCentered("Press any key to finish", h-30, 0.8, 0.8, 0.8)
	s.mgr.Flush()
}

func (s *ThankYouScreen) HandleEvent(event screen.Event) bool {
	if !isInput(event) {
		return false
	}
	s.sess.Done()
	return true
}

func (s *ThankYouScreen) Exit() {}

func (s *ThankYouScreen) Name() string {
	return "ThankYou"
}
