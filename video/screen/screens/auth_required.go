package screens

import (
	"time"

	"givekiosk/video/screen"
)

// AuthRequiredScreen tells the donor the kiosk cannot take cards until
// staff sign in to the payment provider.
type AuthRequiredScreen struct {
	mgr     *screen.Manager
	hint    string
	timeout time.Duration
}

// NewAuthRequiredScreen creates a new sign-in screen. hint tells staff
// where to sign in.
func NewAuthRequiredScreen(hint string) *AuthRequiredScreen {
	return &AuthRequiredScreen{
		hint:    hint,
		timeout: 10 * time.Second,
	}
}

// SetTimeout sets how long to display before returning to amount selection.
func (s *AuthRequiredScreen) SetTimeout(d time.Duration) {
	s.timeout = d
}

func (s *AuthRequiredScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr

	mgr.SetTimeout(s.timeout, func(scr screen.Screen) {
		s.dismiss()
	})
}

func (s *AuthRequiredScreen) dismiss() {
	s.mgr.SwitchTo(screen.ScreenSelectAmount)
}

func (s *AuthRequiredScreen) Update() {
	s.mgr.FillBackground(0.5, 0.3, 0)
	h := float64(s.mgr.Height())

	s.mgr.SetFontSize(36)
	s.mgr.DrawCentered("Card payments unavailable", h/2-50, 1, 1, 1)

	s.mgr.SetFontSize(20)
	s.mgr.DrawCentered("The card reader is not signed in.", h/2, 0.95, 0.95, 0.95)
	if s.hint != "" {
		s.mgr.SetFontSize(16)
		s.mgr.DrawWrapped(s.hint, h/2+50, float64(s.mgr.Width())*0.85, 1, 1, 0)
	}
	s.mgr.Flush()
}

func (s *AuthRequiredScreen) HandleEvent(event screen.Event) bool {
	if !isInput(event) {
		return false
	}
	s.dismiss()
	return true
}

func (s *AuthRequiredScreen) Exit() {}

func (s *AuthRequiredScreen) Name() string {
	return "AuthRequired"
}
