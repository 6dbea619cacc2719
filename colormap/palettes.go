package colormap

import (
	"fmt"
	"sort"
)

// Wind covers wind speed in mph.
var Wind = []Stop{
	RGB(0, 0, 195, 255),
	RGB(2, 0, 228, 248),
	RGB(4, 26, 255, 221),
	RGB(6, 53, 255, 194),
	RGB(8, 80, 255, 167),
	RGB(10, 109, 255, 138),
	RGB(12, 137, 255, 110),
	RGB(14, 165, 255, 82),
	RGB(16, 193, 255, 54),
	RGB(18, 219, 255, 27),
	RGB(20, 249, 243, 1),
	RGB(22, 255, 212, 0),
	RGB(24, 255, 182, 0),
	RGB(26, 255, 151, 0),
	RGB(28, 255, 120, 0),
	RGB(30, 255, 89, 0),
	RGB(32, 255, 55, 0),
	RGB(34, 255, 21, 0),
	RGB(36, 220, 0, 0),
	RGB(38, 182, 0, 0),
	RGB(40, 144, 0, 0),
	RGB(42, 128, 0, 0),
}

// Temperature covers air temperature in degrees Fahrenheit.
var Temperature = []Stop{
	RGB(26, 0, 137, 255),
	RGB(28, 0, 155, 255),
	RGB(30, 0, 176, 255),
	RGB(32, 0, 194, 255),
	RGB(34, 0, 214, 254),
	RGB(36, 5, 235, 242),
	RGB(38, 19, 251, 228),
	RGB(40, 36, 255, 211),
	RGB(42, 50, 255, 197),
	RGB(44, 67, 255, 180),
	RGB(46, 81, 255, 166),
	RGB(48, 98, 255, 149),
	RGB(50, 115, 255, 131),
	RGB(52, 132, 255, 115),
	RGB(54, 149, 255, 98),
	RGB(56, 163, 255, 84),
	RGB(58, 180, 255, 67),
	RGB(60, 194, 255, 52),
	RGB(62, 211, 255, 36),
	RGB(64, 228, 255, 19),
	RGB(66, 242, 251, 5),
	RGB(68, 254, 232, 0),
	RGB(70, 255, 215, 0),
	RGB(72, 255, 196, 0),
	RGB(74, 255, 179, 0),
	RGB(76, 255, 159, 0),
	RGB(78, 255, 140, 0),
	RGB(80, 255, 121, 0),
	RGB(82, 255, 102, 0),
	RGB(84, 255, 85, 0),
	RGB(86, 255, 66, 0),
	RGB(88, 255, 50, 0),
	RGB(90, 255, 30, 0),
	RGB(92, 249, 14, 0),
	RGB(94, 225, 1, 0),
	RGB(96, 202, 0, 0),
	RGB(98, 181, 0, 0),
	RGB(100, 158, 0, 0),
}

// RelativeHumidity covers relative humidity in percent.
var RelativeHumidity = []Stop{
	RGB(5, 149, 89, 16),
	RGB(10, 169, 107, 30),
	RGB(15, 190, 128, 45),
	RGB(20, 203, 154, 75),
	RGB(25, 215, 181, 109),
	RGB(30, 227, 202, 138),
	RGB(35, 238, 216, 166),
	RGB(40, 246, 232, 195),
	RGB(45, 245, 237, 214),
	RGB(50, 245, 242, 235),
	RGB(55, 237, 243, 243),
	RGB(60, 217, 237, 235),
	RGB(65, 197, 233, 229),
	RGB(70, 171, 222, 215),
	RGB(75, 140, 210, 200),
	RGB(80, 113, 195, 183),
	RGB(85, 81, 171, 162),
	RGB(90, 52, 149, 142),
	RGB(95, 30, 130, 122),
	RGB(100, 10, 111, 103),
}

// Precipitation covers hourly precipitation. The first stop is fully
// transparent so values below the 0.18 cutoff draw nothing.
var Precipitation = []Stop{
	RGBA(0.17999, 4, 232, 231, 0),
	RGB(0.18, 4, 232, 231),
	RGB(1, 4, 159, 243),
	RGB(2, 4, 0, 243),
	RGB(4, 2, 253, 2),
	RGB(6, 1, 197, 1),
	RGB(8, 0, 141, 0),
	RGB(10, 253, 247, 1),
	RGB(12, 229, 188, 0),
	RGB(14, 253, 149, 0),
	RGB(15, 253, 1, 0),
	RGB(20, 212, 0, 0),
	RGB(30, 188, 0, 0),
	RGB(40, 247, 0, 254),
	RGB(50, 152, 83, 199),
}

var palettes = map[string][]Stop{
	"wind":              Wind,
	"temperature":       Temperature,
	"relative-humidity": RelativeHumidity,
	"precipitation":     Precipitation,
}

// Lookup returns a copy of the named built-in palette.
func Lookup(name string) ([]Stop, error) {
	stops, ok := palettes[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPalette, name)
	}
	out := make([]Stop, len(stops))
	copy(out, stops)
	return out, nil
}

// Names returns the built-in palette names in sorted order.
func Names() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extent returns the value span covered by stops, or an invalid range when empty.
func Extent(stops []Stop) Range {
	if len(stops) == 0 {
		return Range{}
	}
	r := Range{Min: stops[0].Value, Max: stops[0].Value}
	for _, s := range stops[1:] {
		r.Min = min(r.Min, s.Value)
		r.Max = max(r.Max, s.Value)
	}
	return r
}
