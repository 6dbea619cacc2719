package source

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/pthm-cable/windlayer/colormap"
)

// EncodeJPEG writes img as a JPEG carrying desc as its ImageDescription.
func EncodeJPEG(img image.Image, desc string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return withJPEGDescription(buf.Bytes(), desc)
}

// EncodePNG writes img as a PNG carrying desc in an eXIf chunk.
func EncodePNG(img image.Image, desc string) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return withPNGDescription(buf.Bytes(), desc)
}

// Quantize maps v over r to a byte, clamped.
func Quantize(v float64, r colormap.Range) uint8 {
	return uint8(math.Round(r.Normalize(v) * 255))
}

// Dequantize maps a byte sample back to a physical value over r.
func Dequantize(b uint8, r colormap.Range) float64 {
	return r.Min + r.Span()*float64(b)/255
}
