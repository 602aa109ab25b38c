package screens

import (
	"image"
	"math"

	"github.com/fogleman/gg"
)

const (
	spinnerSize   = 64
	spinnerFrameN = 12
)

var spinnerFrames = makeSpinnerFrames()

// makeSpinnerFrames draws a ring of dots with a bright head rotating one
// step per frame, on the donor screen background.
func makeSpinnerFrames() []image.Image {
	frames := make([]image.Image, spinnerFrameN)
	c := float64(spinnerSize) / 2
	radius := c * 0.7
	dot := c * 0.14

	for f := range frames {
		dc := gg.NewContext(spinnerSize, spinnerSize)
		dc.SetRGB(bgR, bgG, bgB)
		dc.Clear()
		for i := 0; i < spinnerFrameN; i++ {
			a := 2 * math.Pi * float64(i) / spinnerFrameN
			age := (f - i + spinnerFrameN) % spinnerFrameN
			v := 1 - float64(age)/spinnerFrameN
			dc.SetRGBA(1, 1, 1, 0.15+0.85*v)
			dc.DrawCircle(c+radius*math.Cos(a), c+radius*math.Sin(a), dot)
			dc.Fill()
		}
		frames[f] = dc.Image()
	}
	return frames
}
