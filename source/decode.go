// Package source fetches and decodes field images: RGB(A) rasters whose
// channels hold normalized samples, with the physical ranges carried in the
// EXIF ImageDescription.
package source

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/pthm-cable/windlayer/colormap"
)

// VectorField is a decoded wind image. R holds normalized U, G normalized V.
// Ranges are already in mph.
type VectorField struct {
	Image *image.RGBA
	VectorRanges
	Description string
}

// ScalarField is a decoded single-channel image. R holds the normalized value.
type ScalarField struct {
	Image *image.RGBA
	Range colormap.Range
	// Degraded is set when the metadata was unreadable and Range fell back to
	// DefaultScalarRange.
	Degraded    bool
	Description string
}

// DecodeVector parses the ranges first and only then decodes pixels. Missing
// or malformed ranges fail the whole decode.
func DecodeVector(data []byte, unit Unit) (*VectorField, error) {
	desc, err := ReadDescription(data)
	if err != nil {
		return nil, fmt.Errorf("reading vector metadata: %w", err)
	}
	ranges, err := ParseVectorRanges(desc)
	if err != nil {
		return nil, fmt.Errorf("reading vector metadata: %w", err)
	}

	img, err := decodeRGBA(data)
	if err != nil {
		return nil, err
	}
	return &VectorField{
		Image:        img,
		VectorRanges: ranges.ToCanonical(unit),
		Description:  desc,
	}, nil
}

// DecodeScalar never fails on metadata: an unreadable range falls back to
// DefaultScalarRange and marks the field degraded.
func DecodeScalar(data []byte) (*ScalarField, error) {
	field := &ScalarField{Range: DefaultScalarRange}

	desc, err := ReadDescription(data)
	if err == nil {
		field.Description = desc
		var rng colormap.Range
		if rng, err = ParseScalarRange(desc); err == nil {
			field.Range = rng
		}
	}
	field.Degraded = err != nil

	img, err := decodeRGBA(data)
	if err != nil {
		return nil, err
	}
	field.Image = img
	return field, nil
}

func decodeRGBA(data []byte) (*image.RGBA, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decoding image: empty %s", format)
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// Resample scales img to w x h with bilinear filtering.
func Resample(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
