package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pthm-cable/windlayer/colormap"
)

var (
	// ErrNoRanges is returned when a description does not carry the expected ranges.
	ErrNoRanges = errors.New("source: no value ranges in metadata")

	scalarPattern = regexp.MustCompile(`(-?\d+\.?\d*),(-?\d+\.?\d*)`)
	vectorPattern = regexp.MustCompile(`(-?\d+\.?\d*),(-?\d+\.?\d*);(-?\d+\.?\d*),(-?\d+\.?\d*);(-?\d+\.?\d*),(-?\d+\.?\d*)`)
)

// DefaultScalarRange is used when a scalar image has no readable range.
var DefaultScalarRange = colormap.Range{Min: 0, Max: 255}

// VectorRanges holds the denormalization ranges of a vector-field image.
type VectorRanges struct {
	U     colormap.Range
	V     colormap.Range
	Speed colormap.Range
}

// ToCanonical converts every range from unit u to mph.
func (r VectorRanges) ToCanonical(u Unit) VectorRanges {
	return VectorRanges{
		U:     u.RangeToCanonical(r.U),
		V:     u.RangeToCanonical(r.V),
		Speed: u.RangeToCanonical(r.Speed),
	}
}

// ParseScalarRange reads the first "min,max" pair in desc.
func ParseScalarRange(desc string) (colormap.Range, error) {
	m := scalarPattern.FindStringSubmatch(desc)
	if m == nil {
		return colormap.Range{}, fmt.Errorf("%w: %q", ErrNoRanges, desc)
	}
	vals, err := parseFloats(m[1:])
	if err != nil {
		return colormap.Range{}, err
	}
	return colormap.Range{Min: vals[0], Max: vals[1]}, nil
}

// ParseVectorRanges reads "minU,maxU;minV,maxV;minSpeed,maxSpeed" from desc.
// A trailing separator or extra bands after the third are ignored.
func ParseVectorRanges(desc string) (VectorRanges, error) {
	m := vectorPattern.FindStringSubmatch(desc)
	if m == nil {
		return VectorRanges{}, fmt.Errorf("%w: %q", ErrNoRanges, desc)
	}
	vals, err := parseFloats(m[1:])
	if err != nil {
		return VectorRanges{}, err
	}
	return VectorRanges{
		U:     colormap.Range{Min: vals[0], Max: vals[1]},
		V:     colormap.Range{Min: vals[2], Max: vals[3]},
		Speed: colormap.Range{Min: vals[4], Max: vals[5]},
	}, nil
}

func parseFloats(ss []string) ([]float64, error) {
	out := make([]float64, len(ss))
	for i, s := range ss {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoRanges, err)
		}
		out[i] = v
	}
	return out, nil
}

// FormatVectorRanges produces the description string ParseVectorRanges reads.
func FormatVectorRanges(r VectorRanges) string {
	return fmt.Sprintf("%s;%s;%s;", formatPair(r.U), formatPair(r.V), formatPair(r.Speed))
}

// FormatScalarRange produces the description string ParseScalarRange reads.
func FormatScalarRange(r colormap.Range) string {
	return formatPair(r) + ";"
}

func formatPair(r colormap.Range) string {
	return strconv.FormatFloat(r.Min, 'f', 4, 64) + "," + strconv.FormatFloat(r.Max, 'f', 4, 64)
}
