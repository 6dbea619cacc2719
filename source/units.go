package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm-cable/windlayer/colormap"
)

// ErrUnknownUnit is returned by ParseUnit for an unsupported unit string.
var ErrUnknownUnit = errors.New("source: unknown unit")

// Unit is the speed unit a vector-field image was encoded in.
type Unit string

const (
	// MPH is the canonical unit. All ranges are converted to it on decode.
	MPH Unit = "mph"
	KPH Unit = "kph"
	MPS Unit = "mps"
)

const (
	kphFactor = 0.621371
	mpsFactor = 2.23694
)

// ParseUnit accepts mph, kph or mps, case-insensitively. Empty means mph.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case "", MPH:
		return MPH, nil
	case KPH, MPS:
		return u, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

// ToCanonical converts a speed in u to mph. Unknown units pass through unchanged.
func (u Unit) ToCanonical(v float64) float64 {
	switch u {
	case KPH:
		return KphToCanonical(v)
	case MPS:
		return MpsToCanonical(v)
	default:
		return v
	}
}

// RangeToCanonical converts both ends of r.
func (u Unit) RangeToCanonical(r colormap.Range) colormap.Range {
	return colormap.Range{Min: u.ToCanonical(r.Min), Max: u.ToCanonical(r.Max)}
}

// KphToCanonical converts km/h to mph.
func KphToCanonical(v float64) float64 { return v * kphFactor }

// MpsToCanonical converts m/s to mph.
func MpsToCanonical(v float64) float64 { return v * mpsFactor }
