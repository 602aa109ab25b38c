package printer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"givekiosk/receipt"
)

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestEncode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 16))
	for x := 0; x < 3; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(1, 15, color.Black) // bottom row of column 1
	img.Set(2, 0, color.Black)  // top row of column 2

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := []byte{
		27, 'D', 2,
		27, 'L', 0, 3,
		0x16, 0, 0,
		0x16, 0x80, 0,
		0x16, 0, 0x01,
		27, 'E',
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encode =\n%v\nwant\n%v", buf.Bytes(), want)
	}
}

func TestPrintReceipt(t *testing.T) {
	d, err := New(Config{Type: "dymo", BytesPerLine: 4, Lines: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	d.open = func() (io.WriteCloser, error) { return nopCloser{&buf}, nil }

	req := receipt.Request{
		OrganizationName: "Food Bank",
		Amount:           decimal.NewFromInt(25),
		OrderID:          "ORDER-1",
	}
	if err := d.PrintReceipt(context.Background(), req); err != nil {
		t.Fatalf("PrintReceipt: %v", err)
	}

	// header + 64 lines of 1+4 bytes + form feed
	if want := 3 + 4 + 64*5 + 2; buf.Len() != want {
		t.Errorf("Wrote %d bytes, want %d", buf.Len(), want)
	}
}

func TestRenderSize(t *testing.T) {
	d, _ := New(Config{Type: "dymo"})
	dc := d.Render(receipt.Request{Amount: decimal.NewFromInt(5)}, time.Now())
	if dc.Width() != 960 || dc.Height() != 38*8 {
		t.Errorf("Label size %dx%d", dc.Width(), dc.Height())
	}
}

func TestNew(t *testing.T) {
	if d, err := New(Config{}); d != nil || err != nil {
		t.Errorf("Expected no printer, got %v %v", d, err)
	}
	if _, err := New(Config{Type: "laser"}); err == nil {
		t.Error("Expected error for unknown type")
	}
}
