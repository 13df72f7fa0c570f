package detector

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/rolfea/book-buddy/internal/domain"
)

func blankFrame() *domain.Frame {
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return domain.NewFrame(img, nil)
}

func TestDetectBlankFrame(t *testing.T) {
	for _, symbology := range Symbologies() {
		t.Run(symbology, func(t *testing.T) {
			d, err := New(symbology)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			values, err := d.Detect(context.Background(), blankFrame())
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if len(values) != 0 {
				t.Fatalf("found %v in a blank frame", values)
			}
		})
	}
}

func TestDetectQRCode(t *testing.T) {
	img, err := qrcode.NewQRCodeWriter().Encode("9780131103627", gozxing.BarcodeFormat_QR_CODE, 250, 250, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	d, err := New("qr_code")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	values, err := d.Detect(context.Background(), domain.NewFrame(img, nil))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(values) != 1 || values[0] != "9780131103627" {
		t.Fatalf("got %v", values)
	}
}

func TestDetectEveryCodeInFrame(t *testing.T) {
	writer := oned.NewCode128Writer()
	top, err := writer.Encode("9780131103627", gozxing.BarcodeFormat_CODE_128, 400, 80, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bottom, err := writer.Encode("9780201633610", gozxing.BarcodeFormat_CODE_128, 400, 80, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Two barcodes stacked with a white band between them
	img := image.NewGray(image.Rect(0, 0, 440, 240))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 20, 420, 100), top, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 140, 420, 220), bottom, image.Point{}, draw.Src)

	d, err := New("code_128")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	values, err := d.Detect(context.Background(), domain.NewFrame(img, nil))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	found := map[string]bool{}
	for _, v := range values {
		found[v] = true
	}
	if len(values) != 2 || !found["9780131103627"] || !found["9780201633610"] {
		t.Fatalf("got %v, want both codes", values)
	}
}

func TestNewDefaultsAndRejects(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Symbology() != DefaultSymbology {
		t.Fatalf("got %s, want %s", d.Symbology(), DefaultSymbology)
	}

	if _, err := New("pdf_417"); !errors.Is(err, domain.ErrCapabilityUnavailable) {
		t.Fatalf("got %v, want ErrCapabilityUnavailable", err)
	}
	if Supported("pdf_417") || !Supported("QR_CODE") {
		t.Fatal("Supported disagrees with the reader set")
	}
}

func TestDetectReleasedFrame(t *testing.T) {
	d, _ := New(DefaultSymbology)
	frame := blankFrame()
	frame.Close()

	if _, err := d.Detect(context.Background(), frame); err == nil {
		t.Fatal("detect on a released frame succeeded")
	}
}
