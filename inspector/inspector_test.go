package inspector

import (
	"testing"
	"time"
)

type sample struct {
	URL      string        `inspect:"label"`
	Opacity  float64       `inspect:"bar,max:1"`
	Loaded   bool
	Apply    time.Duration `inspect:"label"`
	Internal int           `inspect:"skip"`
	hidden   int
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag     string
		widget  Widget
		options map[string]string
	}{
		{"", WidgetAuto, map[string]string{}},
		{"bar,max:200", WidgetBar, map[string]string{"max": "200"}},
		{"label,fmt:%.1f", WidgetLabel, map[string]string{"fmt": "%.1f"}},
		{"skip", WidgetSkip, map[string]string{}},
		{"bogus", WidgetAuto, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			w, opts := ParseTag(tt.tag)
			if w != tt.widget {
				t.Errorf("widget = %v, want %v", w, tt.widget)
			}
			if len(opts) != len(tt.options) {
				t.Fatalf("options = %v, want %v", opts, tt.options)
			}
			for k, v := range tt.options {
				if opts[k] != v {
					t.Errorf("options[%q] = %q, want %q", k, opts[k], v)
				}
			}
		})
	}
}

func TestExtractFields(t *testing.T) {
	s := sample{URL: "wind.png", Opacity: 0.5, Loaded: true, Apply: 1500 * time.Microsecond, hidden: 1}
	for _, v := range []any{s, &s} {
		fields := ExtractFields(v)
		if len(fields) != 4 {
			t.Fatalf("ExtractFields(%T) = %d fields, want 4", v, len(fields))
		}
		if fields[1].Widget != WidgetBar || fields[1].Options.Max() != 1 {
			t.Errorf("Opacity field = %+v", fields[1])
		}
		if fields[2].Widget != WidgetBool {
			t.Errorf("Loaded widget = %v, want bool", fields[2].Widget)
		}
	}
	if ExtractFields(42) != nil {
		t.Error("ExtractFields(int) != nil")
	}
	if ExtractFields((*sample)(nil)) != nil {
		t.Error("ExtractFields(nil pointer) != nil")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value any
		fmt   string
		want  string
	}{
		{0.256, "", "0.26"},
		{float32(2), "", "2.00"},
		{1500 * time.Microsecond, "", "1.5ms"},
		{"", "", "-"},
		{3.14159, "%.1f", "3.1"},
		{7, "", "7"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.value, tt.fmt); got != tt.want {
			t.Errorf("FormatValue(%v, %q) = %q, want %q", tt.value, tt.fmt, got, tt.want)
		}
	}
}

func TestCycle(t *testing.T) {
	ids := []string{"temperature", "wind"}
	ins := NewInspector(800, 600)

	var got []string
	for range 4 {
		ins.Cycle(ids)
		id, ok := ins.Selected()
		if !ok {
			id = "closed"
		}
		got = append(got, id)
	}
	want := []string{"temperature", "wind", "closed", "temperature"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cycle = %v, want %v", got, want)
		}
	}

	ins.Select("gone")
	ins.Cycle(ids)
	if _, ok := ins.Selected(); ok {
		t.Error("cycling from an unknown id should close the panel")
	}
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		value any
		want  float64
		ok    bool
	}{
		{int32(7), 7, true},
		{uint8(200), 200, true},
		{float32(0.5), 0.5, true},
		{"7", 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := numeric(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("numeric(%#v) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
	if m := (Options{"max": "200"}).Max(); m != 200 {
		t.Errorf("Max() = %v, want 200", m)
	}
	if m := (Options{"max": "-3"}).Max(); m != 1 {
		t.Errorf("Max() with negative max = %v, want 1", m)
	}
}
