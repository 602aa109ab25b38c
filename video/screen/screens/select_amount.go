package screens

import (
	"time"

	"givekiosk/donation"
	"givekiosk/keypad"
	"givekiosk/settings"
	"givekiosk/video/screen"
)

var shakeOffsets = []int{-14, 12, -9, 7, -4, 2, 0}

// SelectAmountScreen offers the preset amounts and a custom amount typed
// on the keypad. The knob moves between presets and the custom field.
type SelectAmountScreen struct {
	mgr     *screen.Manager
	sess    Session
	st      Settings
	snap    donation.Snapshot
	presets []settings.Preset
	cursor  int // index into presets; len(presets) is the custom field

	shakeTimerID screen.TimerID
	shakeFrame   int

	// Batched UI updates to avoid blocking rotary encoder
	updateTimerID  screen.TimerID
	pendingUpdate  bool
	updateInterval time.Duration
}

// NewSelectAmountScreen creates a new select amount screen.
func NewSelectAmountScreen(sess Session, st Settings) *SelectAmountScreen {
	return &SelectAmountScreen{
		sess:           sess,
		st:             st,
		updateInterval: 50 * time.Millisecond,
	}
}

func (s *SelectAmountScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
	s.snap = s.sess.Snapshot()
	s.presets = s.st.Kiosk().Presets
	s.cursor = 0
	if s.snap.Amount != "" || len(s.presets) == 0 {
		s.cursor = len(s.presets)
	}
	s.shakeFrame = len(shakeOffsets) - 1
	s.pendingUpdate = false
	s.updateTimerID = 0

	// Entering the view counts as interaction for the idle timer.
	s.sess.Touch()
}

func (s *SelectAmountScreen) Update() {
	s.mgr.FillBackground(bgR, bgG, bgB)
	w, h := float64(s.mgr.Width()), float64(s.mgr.Height())

	org := s.st.Organization()
	title := "Choose an amount"
	if org.Name != "" {
		title = "Give to " + org.Name
	}
	s.mgr.SetFontSize(32)
	s.mgr.DrawCentered(title, h*0.1, 1, 1, 1)

	s.drawPresets(w, h)
	s.drawCustom(w, h)

	if s.snap.Banner != "" {
		s.mgr.FillRect(0, int(h*0.86), s.mgr.Width(), int(h*0.14), 0.7, 0, 0)
		s.mgr.SetFontSize(20)
		s.mgr.DrawCentered(s.snap.Banner, h*0.93, 1, 1, 1)
	} else {
		s.mgr.SetFontSize(16)
		s.mgr.DrawCentered("Turn to choose, press to give", h*0.93, 0.9, 0.9, 0.9)
	}

	s.mgr.Flush()
}

// drawPresets lays the presets out in rows of three.
func (s *SelectAmountScreen) drawPresets(w, h float64) {
	if len(s.presets) == 0 {
		return
	}
	const cols = 3
	boxW := w * 0.28
	boxH := h * 0.14
	gap := w * 0.03
	left := (w - cols*boxW - (cols-1)*gap) / 2
	top := h * 0.2

	dc := s.mgr.DC()
	s.mgr.SetFontSize(28)
	for i, p := range s.presets {
		x := left + float64(i%cols)*(boxW+gap)
		y := top + float64(i/cols)*(boxH+gap)

		if i == s.cursor {
			dc.SetRGB(1, 0.85, 0)
		} else {
			dc.SetRGB(1, 1, 1)
		}
		dc.DrawRoundedRectangle(x, y, boxW, boxH, 8)
		dc.Fill()

		dc.SetRGB(0, 0.2, 0.35)
		dc.DrawStringAnchored(money(p.Amount), x+boxW/2, y+boxH/2, 0.5, 0.5)
	}
}

func (s *SelectAmountScreen) drawCustom(w, h float64) {
	dc := s.mgr.DC()
	boxW := w * 0.6
	boxH := h * 0.16
	x := (w-boxW)/2 + float64(shakeOffsets[s.shakeFrame])
	y := h * 0.62

	if s.cursor == len(s.presets) {
		dc.SetRGB(1, 0.85, 0)
	} else {
		dc.SetRGB(0.85, 0.85, 0.85)
	}
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 8)
	dc.Fill()

	s.mgr.SetFontSize(36)
	dc.SetRGB(0, 0.2, 0.35)
	if s.snap.Amount == "" {
		s.mgr.SetFontSize(22)
		dc.DrawStringAnchored("Other amount", x+boxW/2, y+boxH/2, 0.5, 0.5)
		return
	}
	dc.DrawStringAnchored(money(s.snap.Amount), x+boxW/2, y+boxH/2, 0.5, 0.5)
}

func (s *SelectAmountScreen) HandleEvent(event screen.Event) bool {
	switch event.Type {
	case screen.EventSession:
		if snap := event.Session(); snap != nil {
			s.snap = *snap
			if s.snap.Amount != "" {
				s.cursor = len(s.presets)
			}
			s.Update()
			return true
		}

	case screen.EventShake:
		s.startShake()
		return true

	case screen.EventKey:
		k := key(event)
		switch {
		case k.IsDigit():
			s.sess.PressDigit(rune(k))
		case k == keypad.KeyDelete:
			s.sess.DeleteDigit()
		case k == keypad.KeyEnter:
			s.activate()
		case k == keypad.KeyEscape:
			s.cancel()
		default:
			return false
		}
		return true

	case screen.EventRotaryTurn:
		if rotary := event.Rotary(); rotary != nil {
			s.cursor = wrap(s.cursor, rotary.Delta, len(s.presets)+1)
			s.sess.Touch()
			s.scheduleUpdate()
			return true
		}

	case screen.EventRotaryPress:
		s.activate()
		return true

	case screen.EventRotaryLongPress:
		s.cancel()
		return true

	case screen.EventButton:
		switch button(event) {
		case screen.ButtonConfirm:
			s.activate()
		case screen.ButtonCancel:
			if s.snap.Amount != "" {
				s.sess.DeleteDigit()
			} else {
				s.cancel()
			}
		}
		return true
	}
	return false
}

// activate gives the highlighted preset, or submits the custom amount.
func (s *SelectAmountScreen) activate() {
	if s.cursor < len(s.presets) && s.snap.Amount == "" {
		s.sess.SelectPreset(s.cursor)
		return
	}
	s.sess.SubmitCustom()
}

// cancel clears the custom amount, or leaves for the home screen when
// there is nothing to clear.
func (s *SelectAmountScreen) cancel() {
	if s.snap.Amount != "" {
		s.sess.ClearAmount()
		return
	}
	if s.st.Kiosk().HomePageEnabled {
		s.mgr.SwitchTo(screen.ScreenHome)
		return
	}
	s.sess.Touch()
}

func (s *SelectAmountScreen) scheduleUpdate() {
	if s.pendingUpdate {
		return
	}
	s.pendingUpdate = true
	s.updateTimerID = s.mgr.SetTimeout(s.updateInterval, func(scr screen.Screen) {
		if s.updateTimerID != 0 {
			s.pendingUpdate = false
			s.updateTimerID = 0
			s.Update()
		}
	})
}

func (s *SelectAmountScreen) startShake() {
	s.shakeFrame = 0
	s.Update()
	s.nextShakeFrame()
}

func (s *SelectAmountScreen) nextShakeFrame() {
	s.shakeTimerID = s.mgr.SetTimeout(40*time.Millisecond, func(scr screen.Screen) {
		if s.shakeTimerID == 0 {
			return
		}
		s.shakeFrame++
		s.Update()
		if s.shakeFrame < len(shakeOffsets)-1 {
			s.nextShakeFrame()
		} else {
			s.shakeTimerID = 0
		}
	})
}

func (s *SelectAmountScreen) Exit() {
	s.updateTimerID = 0
	s.pendingUpdate = false
	s.shakeTimerID = 0
	s.shakeFrame = len(shakeOffsets) - 1
}

func (s *SelectAmountScreen) Name() string {
	return "SelectAmount"
}
