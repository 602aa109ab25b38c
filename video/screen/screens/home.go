package screens

import (
	"image"
	"log"

	"golang.org/x/image/draw"

	"givekiosk/settings"
	"givekiosk/video/screen"
)

// HomeScreen is the attract screen: the operator's background image with
// the headline and subtext laid out per the kiosk layout settings.
type HomeScreen struct {
	mgr  *screen.Manager
	sess Session
	st   Settings

	// scaled background, rebuilt when the layout changes
	bgKey layoutKey
	bg    *image.RGBA
}

type layoutKey struct {
	path          string
	zoom          float64
	panX, panY    float64
	width, height int
}

// NewHomeScreen creates a new home screen.
func NewHomeScreen(sess Session, st Settings) *HomeScreen {
	return &HomeScreen{sess: sess, st: st}
}

func (s *HomeScreen) Init(mgr *screen.Manager) {
	s.mgr = mgr
}

func (s *HomeScreen) Update() {
	k := s.st.Kiosk()
	l := k.Layout

	if bg := s.background(l); bg != nil {
		s.mgr.DC().DrawImage(bg, 0, 0)
	} else {
		s.mgr.FillBackground(bgR, bgG, bgB)
	}

	headSize, subSize := l.HeadlineSize, l.SubtextSize
	if headSize <= 0 {
		headSize = 48
	}
	if subSize <= 0 {
		subSize = 24
	}
	blockH := headSize + subSize + subSize/2
	top := TextTop(l.Position, l.FineTune, s.mgr.Height(), blockH)

	s.mgr.SetFontSize(headSize)
	s.mgr.DrawCentered(l.Headline, top+float64(headSize)/2, 1, 1, 1)
	if l.Subtext != "" {
		s.mgr.SetFontSize(subSize)
		s.mgr.DrawWrapped(l.Subtext, top+float64(headSize)+float64(subSize), float64(s.mgr.Width())*0.8, 0.9, 0.9, 0.9)
	}

	s.mgr.SetFontSize(18)
	s.mgr.DrawCentered("Press any key to give", float64(s.mgr.Height())-24, 1, 1, 0)

	s.mgr.Flush()
}

// background returns the layout's background image scaled to the screen,
// or nil if none is set or it cannot be loaded.
func (s *HomeScreen) background(l settings.Layout) *image.RGBA {
	if l.BackgroundImage == "" {
		return nil
	}
	key := layoutKey{l.BackgroundImage, l.Zoom, l.PanX, l.PanY, s.mgr.Width(), s.mgr.Height()}
	if s.bg != nil && key == s.bgKey {
		return s.bg
	}

	src, err := s.mgr.Image(l.BackgroundImage)
	if err != nil {
		log.Printf("Screen: background %s: %v", l.BackgroundImage, err)
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, key.width, key.height))
	r := CoverRect(src.Bounds().Dx(), src.Bounds().Dy(), key.width, key.height, l.Zoom, l.PanX, l.PanY)
	draw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), draw.Src, nil)

	s.bg, s.bgKey = dst, key
	return dst
}

func (s *HomeScreen) HandleEvent(event screen.Event) bool {
	if !isInput(event) {
		return false
	}
	s.sess.Begin()
	s.mgr.SwitchTo(screen.ScreenSelectAmount)
	return true
}

func (s *HomeScreen) Exit() {}

func (s *HomeScreen) Name() string {
	return "Home"
}

// CoverRect places an image so it covers the screen, magnified by zoom
// (1..5). Pan values in -1..1 slide the visible window across the
// overflow: -1 shows the left/top edge, 1 the right/bottom edge.
func CoverRect(imgW, imgH, scrW, scrH int, zoom, panX, panY float64) image.Rectangle {
	if imgW <= 0 || imgH <= 0 {
		return image.Rect(0, 0, scrW, scrH)
	}
	zoom = clamp(zoom, 1, 5)
	panX = clamp(panX, -1, 1)
	panY = clamp(panY, -1, 1)

	scale := float64(scrW) / float64(imgW)
	if sy := float64(scrH) / float64(imgH); sy > scale {
		scale = sy
	}
	scale *= zoom

	w := float64(imgW) * scale
	h := float64(imgH) * scale
	x := -(w - float64(scrW)) / 2 * (1 + panX)
	y := -(h - float64(scrH)) / 2 * (1 + panY)
	return image.Rect(int(x), int(y), int(x+w+0.5), int(y+h+0.5))
}

// TextTop returns the y of the top of the home text block.
func TextTop(pos settings.Position, fineTune, screenH, blockH int) float64 {
	var top float64
	switch pos {
	case settings.PositionTop:
		top = float64(screenH*12) / 100
	case settings.PositionBottom:
		top = float64(screenH*85)/100 - float64(blockH)
	default:
		top = float64(screenH-blockH) / 2
	}
	return top + float64(fineTune)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
