package colormap

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// stopRow is one line of a palette file. An empty alpha column means opaque.
type stopRow struct {
	Value float64 `csv:"value"`
	R     int     `csv:"r"`
	G     int     `csv:"g"`
	B     int     `csv:"b"`
	A     string  `csv:"a,omitempty"`
}

// LoadCSV parses a palette with the header value,r,g,b[,a].
func LoadCSV(r io.Reader) ([]Stop, error) {
	var rows []*stopRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing palette csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoStops
	}

	stops := make([]Stop, 0, len(rows))
	for i, row := range rows {
		rgb := [3]int{row.R, row.G, row.B}
		for _, c := range rgb {
			if c < 0 || c > 255 {
				return nil, fmt.Errorf("palette row %d: channel %d out of range", i+1, c)
			}
		}
		s := RGB(row.Value, uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2]))
		if a := strings.TrimSpace(row.A); a != "" {
			alpha, err := strconv.Atoi(a)
			if err != nil || alpha < 0 || alpha > 255 {
				return nil, fmt.Errorf("palette row %d: invalid alpha %q", i+1, row.A)
			}
			s = RGBA(row.Value, s.Color[0], s.Color[1], s.Color[2], uint8(alpha))
		}
		stops = append(stops, s)
	}
	return stops, nil
}

// LoadFile reads a palette CSV from disk.
func LoadFile(path string) ([]Stop, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening palette: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// Resolve returns a built-in palette by name, or loads ref as a CSV file when
// it ends in .csv.
func Resolve(ref string) ([]Stop, error) {
	if strings.HasSuffix(strings.ToLower(ref), ".csv") {
		return LoadFile(ref)
	}
	return Lookup(ref)
}

// WriteCSV writes stops in the format read by LoadCSV.
func WriteCSV(w io.Writer, stops []Stop) error {
	rows := make([]*stopRow, len(stops))
	for i, s := range stops {
		row := &stopRow{Value: s.Value, R: int(s.Color[0]), G: int(s.Color[1]), B: int(s.Color[2])}
		if s.HasAlpha {
			row.A = strconv.Itoa(int(s.Color[3]))
		}
		rows[i] = row
	}
	return gocsv.Marshal(rows, w)
}
