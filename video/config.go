package video

// Config holds video display configuration.
type Config struct {
	Enabled  bool   `yaml:"enabled"`  // drive the framebuffer; otherwise draw headless
	Device   string `yaml:"device"`   // framebuffer device, default /dev/fb0
	Rotation int    `yaml:"rotation"` // 0, 90, 180, or 270 degrees
	Font     string `yaml:"font"`     // TTF file for screen text
	Width    int    `yaml:"width"`    // headless canvas size when no framebuffer
	Height   int    `yaml:"height"`
}

// HeadlessSize returns the canvas size used without a framebuffer.
func (c Config) HeadlessSize() (int, int) {
	w, h := c.Width, c.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 480
	}
	return w, h
}

// logicalSize returns the drawing canvas size for a panel of w x h pixels.
func logicalSize(w, h, rotation int) (int, int) {
	if rotation == 90 || rotation == 270 {
		return h, w
	}
	return w, h
}

// panelCoord maps a canvas pixel to the panel pixel it lands on.
// w and h are the panel size.
func panelCoord(x, y, w, h, rotation int) (int, int) {
	switch rotation {
	case 90:
		return w - 1 - y, x
	case 180:
		return w - 1 - x, h - 1 - y
	case 270:
		return y, h - 1 - x
	default:
		return x, y
	}
}
