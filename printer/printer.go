package printer

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"givekiosk/receipt"
)

// Config holds label printer settings.
type Config struct {
	Type         string `yaml:"type"`           // "dymo" or "" for none
	Device       string `yaml:"device"`         // e.g. "/dev/usb/lp0"
	Font         string `yaml:"font"`           // TTF file, built-in face if unset
	Logo         string `yaml:"logo"`           // optional PNG drawn at the left edge
	BytesPerLine int    `yaml:"bytes_per_line"` // print head width in bytes
	Lines        int    `yaml:"lines"`          // label length in dot lines
}

// Dymo prints donation receipts on a Dymo LabelWriter.
type Dymo struct {
	mu   sync.Mutex
	cfg  Config
	open func() (io.WriteCloser, error)
}

// New returns a printer for cfg, or nil if no printer is configured.
func New(cfg Config) (*Dymo, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "dymo":
	default:
		return nil, fmt.Errorf("unknown printer type %q", cfg.Type)
	}
	if cfg.Device == "" {
		cfg.Device = "/dev/usb/lp0"
	}
	if cfg.BytesPerLine <= 0 {
		cfg.BytesPerLine = 38
	}
	if cfg.Lines <= 0 {
		cfg.Lines = 960
	}

	d := &Dymo{cfg: cfg}
	d.open = func() (io.WriteCloser, error) {
		return os.OpenFile(cfg.Device, os.O_RDWR, 0644)
	}
	return d, nil
}

// PrintReceipt renders req as a label and sends it to the printer.
func (d *Dymo) PrintReceipt(ctx context.Context, req receipt.Request) error {
	dc := d.Render(req, time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := d.open()
	if err != nil {
		return fmt.Errorf("open printer %s: %w", d.cfg.Device, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := encode(w, dc.Image()); err != nil {
		return fmt.Errorf("write label: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write label: %w", err)
	}
	log.Printf("Printer: printed receipt for order %s", req.OrderID)
	return nil
}

// Render draws the receipt label. The label is laid out landscape: the
// long side runs along the feed direction.
func (d *Dymo) Render(req receipt.Request, now time.Time) *gg.Context {
	width := d.cfg.Lines
	height := d.cfg.BytesPerLine * 8

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	offset := 0.0
	if d.cfg.Logo != "" {
		if im, err := gg.LoadPNG(d.cfg.Logo); err == nil {
			dc.DrawImage(im, 0, 0)
			offset = float64(im.Bounds().Dx()) / 2
		} else {
			log.Printf("Printer: logo %s: %v", d.cfg.Logo, err)
		}
	}
	cx := float64(width)/2 + offset

	d.face(dc, 40)
	dc.DrawStringAnchored(req.OrganizationName, cx, 50, 0.5, 0.5)

	d.face(dc, 84)
	dc.DrawStringAnchored("$"+req.Amount.StringFixed(2), cx, 140, 0.5, 0.5)

	d.face(dc, 24)
	dc.DrawStringAnchored(now.Format("Mon, 02-Jan-2006 03:04 PM"), cx, 210, 0.5, 0.5)
	if req.OrganizationTaxID != "" {
		dc.DrawStringAnchored("Tax ID: "+req.OrganizationTaxID, cx, 240, 0.5, 0.5)
	}

	d.face(dc, 18)
	if req.TransactionID != "" {
		dc.DrawStringAnchored("Transaction "+req.TransactionID, cx, 268, 0.5, 0.5)
	}
	if req.OrganizationReceiptMessage != "" {
		dc.DrawStringWrapped(req.OrganizationReceiptMessage, cx, float64(height-20), 0.5, 0.5, float64(width)/2, 1.2, gg.AlignCenter)
	}

	dc.SetLineWidth(2)
	dc.DrawRectangle(10, 10, float64(width-20), float64(height-20))
	dc.Stroke()
	return dc
}

func (d *Dymo) face(dc *gg.Context, points float64) {
	if d.cfg.Font == "" {
		return
	}
	if err := dc.LoadFontFace(d.cfg.Font, points); err != nil {
		log.Printf("Printer: font %s: %v", d.cfg.Font, err)
	}
}

// encode writes img as a LabelWriter raster job: one column of the
// image per print line, eight dots per byte, dark pixels printed.
func encode(w io.Writer, img image.Image) error {
	b := img.Bounds()
	bpl := b.Dy() / 8
	lines := b.Dx()

	if _, err := w.Write([]byte{27, 'D', byte(bpl)}); err != nil {
		return err
	}
	if _, err := w.Write([]byte{27, 'L', byte(lines >> 8), byte(lines)}); err != nil {
		return err
	}

	row := make([]byte, bpl+1)
	row[0] = 0x16
	for x := b.Min.X; x < b.Max.X; x++ {
		for n := 0; n < bpl; n++ {
			var data byte
			y0 := b.Max.Y - 8*(n+1)
			for i := 0; i < 8; i++ {
				r, _, _, _ := img.At(x, y0+i).RGBA()
				if r <= 0x8000 {
					data |= 1 << i
				}
			}
			row[n+1] = data
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{27, 'E'}) // form feed
	return err
}
