// Package detector implements application.Detector with gozxing.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/rolfea/book-buddy/internal/domain"
)

// DefaultSymbology is used when none is configured
const DefaultSymbology = "ean_13"

var readers = map[string]func() gozxing.Reader{
	"ean_13":   func() gozxing.Reader { return oned.NewEAN13Reader() },
	"ean_8":    func() gozxing.Reader { return oned.NewEAN8Reader() },
	"upc_a":    func() gozxing.Reader { return oned.NewUPCAReader() },
	"upc_e":    func() gozxing.Reader { return oned.NewUPCEReader() },
	"code_128": func() gozxing.Reader { return oned.NewCode128Reader() },
	"qr_code":  func() gozxing.Reader { return qrcode.NewQRCodeReader() },
}

// Symbologies lists the supported symbology names
func Symbologies() []string {
	names := make([]string, 0, len(readers))
	for name := range readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supported reports whether symbology names a supported reader
func Supported(symbology string) bool {
	_, ok := readers[strings.ToLower(symbology)]
	return ok
}

// GozxingDetector decodes one configured symbology
type GozxingDetector struct {
	symbology string
	newReader func() gozxing.Reader
	hints     map[gozxing.DecodeHintType]interface{}
}

// New creates a detector for symbology. An unsupported symbology fails with
// domain.ErrCapabilityUnavailable.
func New(symbology string) (*GozxingDetector, error) {
	if symbology == "" {
		symbology = DefaultSymbology
	}
	symbology = strings.ToLower(symbology)

	newReader, ok := readers[symbology]
	if !ok {
		return nil, domain.Wrap(domain.ErrCapabilityUnavailable,
			fmt.Errorf("detector: unsupported symbology %q (supported: %s)", symbology, strings.Join(Symbologies(), ", ")))
	}

	return &GozxingDetector{
		symbology: symbology,
		newReader: newReader,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}, nil
}

// Symbology returns the configured symbology
func (d *GozxingDetector) Symbology() string {
	return d.symbology
}

// Detect returns every value decoded in the frame, in the order found, or
// none when the frame holds no readable code
func (d *GozxingDetector) Detect(ctx context.Context, frame *domain.Frame) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	img := frame.Image()
	if img == nil {
		return nil, errors.New("detector: frame already released")
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("detector: binarize: %w", err)
	}

	// Readers keep per-decode state
	reader := multi.NewGenericMultipleBarcodeReader(d.newReader())
	results, err := reader.DecodeMultiple(bmp, d.hints)
	if err != nil {
		if noCode(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("detector: decode: %w", err)
	}

	values := make([]string, 0, len(results))
	for _, result := range results {
		values = append(values, result.GetText())
	}
	return values, nil
}

// noCode reports whether the decode error only means nothing readable was found
func noCode(err error) bool {
	var notFound gozxing.NotFoundException
	var checksum gozxing.ChecksumException
	var format gozxing.FormatException
	return errors.As(err, &notFound) || errors.As(err, &checksum) || errors.As(err, &format)
}
