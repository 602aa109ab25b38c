package screens

import "givekiosk/video/screen"

// UnavailableScreen is shown while the kiosk's subscription does not
// allow donations.
type UnavailableScreen struct {
	mgr    *screen.Manager
	reason string
}

// NewUnavailableScreen creates a new unavailable screen.
func NewUnavailableScreen() *UnavailableScreen {
	return &UnavailableScreen{}
}

// SetReason sets the line shown under the title.
func (s *UnavailableScreen) SetReason(reason string) {
	s.reason = reason
}

func (s *UnavailableScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
}

func (s *UnavailableScreen) Update() {
	s.mgr.FillBackground(0.5, 0.3, 0) // Orange-ish
	h := float64(s.mgr.Height())

	s.mgr.SetFontSize(40)
	s.mgr.DrawCentered("Not accepting donations", h/2-20, 1, 1, 1)
	if s.reason != "" {
		s.mgr.SetFontSize(20)
		s.mgr.DrawCentered(s.reason, h/2+30, 0.95, 0.95, 0.95)
	}
	s.mgr.Flush()
}

func (s *UnavailableScreen) HandleEvent(event screen.Event) bool {
	return false
}

func (s *UnavailableScreen) Exit() {
}

func (s *UnavailableScreen) Name() string {
	return "Unavailable"
}
