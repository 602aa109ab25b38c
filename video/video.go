//go:build screen

package video

import (
	"encoding/binary"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/d21d3q/framebuffer"
	"github.com/fogleman/gg"

	"givekiosk/video/screen"
)

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return true
}

// Display drives a framebuffer panel. Screens draw into an RGBA canvas
// that is converted to the panel format on flush.
type Display struct {
	mgr             *screen.Manager
	pixBuffer       []byte
	backBuffer      []byte
	rgbaImage       *image.RGBA
	panelW, panelH  int
	width, height   int
	rotation        int
	bytesPerPixel   int
	lineLengthBytes int
	initialized     bool
}

// New opens the framebuffer and creates a screen manager drawing on it.
func New(cfg Config) (*Display, error) {
	switch cfg.Rotation {
	case 0, 90, 180, 270:
	default:
		return nil, fmt.Errorf("invalid rotation %d", cfg.Rotation)
	}
	v := &Display{rotation: cfg.Rotation}
	if err := v.init(cfg.Device); err != nil {
		return nil, err
	}
	v.mgr = screen.NewManager(gg.NewContextForRGBA(v.rgbaImage), v.width, v.height, v.update)
	v.mgr.SetUpdateRectFn(v.updateRect)
	v.mgr.SetFontPath(cfg.Font)
	return v, nil
}

func (v *Display) init(device string) error {
	if device == "" {
		device = "/dev/fb0"
	}
	fbLowLevel, err := framebuffer.OpenFrameBuffer(device, os.O_RDWR)
	if err != nil {
		return fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fbLowLevel.VarScreenInfo()
	if err != nil {
		return fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fbLowLevel.FixScreenInfo()
	if err != nil {
		return fmt.Errorf("get fixed screen info: %w", err)
	}

	v.pixBuffer, err = fbLowLevel.Pixels()
	if err != nil {
		return fmt.Errorf("get pixel data: %w", err)
	}

	switch varInfo.BitsPerPixel {
	case 16:
		v.bytesPerPixel = 2
	case 32:
		v.bytesPerPixel = 4
	default:
		return fmt.Errorf("unsupported framebuffer depth %d bpp", varInfo.BitsPerPixel)
	}

	v.panelW = int(varInfo.XRes)
	v.panelH = int(varInfo.YRes)
	v.lineLengthBytes = int(fixedInfo.LineLength)
	v.backBuffer = make([]byte, v.panelH*v.lineLengthBytes)
	v.width, v.height = logicalSize(v.panelW, v.panelH, v.rotation)

	log.Printf("Video: framebuffer %dx%d, %d bpp, stride %d bytes, rotation %d",
		v.panelW, v.panelH, varInfo.BitsPerPixel, v.lineLengthBytes, v.rotation)

	v.rgbaImage = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	v.initialized = true

	v.clear()
	return nil
}

func (v *Display) clear() {
	for i := range v.pixBuffer {
		v.pixBuffer[i] = 0
	}
}

func (v *Display) update() {
	v.updateRect(0, 0, v.width, v.height)
}

// updateRect converts a canvas rectangle and copies it to the panel.
func (v *Display) updateRect(x0, y0, w, h int) {
	if !v.initialized {
		return
	}
	r := image.Rect(x0, y0, x0+w, y0+h).Intersect(v.rgbaImage.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			off := v.rgbaImage.PixOffset(x, y)
			p := v.rgbaImage.Pix[off : off+4]
			px, py := panelCoord(x, y, v.panelW, v.panelH, v.rotation)
			fbIdx := py*v.lineLengthBytes + px*v.bytesPerPixel
			if fbIdx+v.bytesPerPixel > len(v.backBuffer) {
				continue
			}
			if v.bytesPerPixel == 2 {
				pixel16 := uint16(p[0]>>3)<<11 | uint16(p[1]>>2)<<5 | uint16(p[2]>>3)
				binary.LittleEndian.PutUint16(v.backBuffer[fbIdx:], pixel16)
			} else {
				// BGRA
				v.backBuffer[fbIdx] = p[2]
				v.backBuffer[fbIdx+1] = p[1]
				v.backBuffer[fbIdx+2] = p[0]
				v.backBuffer[fbIdx+3] = 0xff
			}
		}
	}

	// copy only the panel rows touched
	pr := v.panelRect(r)
	for y := pr.Min.Y; y < pr.Max.Y; y++ {
		start := y*v.lineLengthBytes + pr.Min.X*v.bytesPerPixel
		end := y*v.lineLengthBytes + pr.Max.X*v.bytesPerPixel
		if end > len(v.pixBuffer) || end > len(v.backBuffer) {
			break
		}
		copy(v.pixBuffer[start:end], v.backBuffer[start:end])
	}
}

// panelRect returns the panel rectangle covering canvas rectangle r.
func (v *Display) panelRect(r image.Rectangle) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	x0, y0 := panelCoord(r.Min.X, r.Min.Y, v.panelW, v.panelH, v.rotation)
	x1, y1 := panelCoord(r.Max.X-1, r.Max.Y-1, v.panelW, v.panelH, v.rotation)
	return image.Rect(min(x0, x1), min(y0, y1), max(x0, x1)+1, max(y0, y1)+1)
}

// Manager returns the screen manager drawing on this display.
func (v *Display) Manager() *screen.Manager {
	return v.mgr
}

// Shutdown blanks the panel.
func (v *Display) Shutdown() {
	if !v.initialized {
		return
	}
	v.clear()
}

// Release blanks the panel and stops further drawing.
func (v *Display) Release() error {
	v.clear()
	v.initialized = false
	return nil
}

// Width returns the canvas width.
func (v *Display) Width() int {
	return v.width
}

// Height returns the canvas height.
func (v *Display) Height() int {
	return v.height
}
