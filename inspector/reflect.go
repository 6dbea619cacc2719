package inspector

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Widget selects how a field is drawn.
type Widget int

const (
	WidgetAuto Widget = iota
	WidgetLabel
	WidgetBar
	WidgetBool
	WidgetSkip
)

var widgetNames = map[string]Widget{
	"label": WidgetLabel,
	"bar":   WidgetBar,
	"bool":  WidgetBool,
	"skip":  WidgetSkip,
}

// Options are the key:value pairs following the widget name in a tag.
type Options map[string]string

// Max is the bar's full-scale value, 1 unless a positive max is given.
func (o Options) Max() float64 {
	if m, err := strconv.ParseFloat(o["max"], 64); err == nil && m > 0 {
		return m
	}
	return 1
}

// Field is one exported struct field with its rendering hints.
type Field struct {
	Name    string
	Value   any
	Widget  Widget
	Options Options
}

// ParseTag splits an `inspect:"widget[,key:value...]"` tag, for example
// `inspect:"bar,max:200"` or `inspect:"label,fmt:%.1f"`. Unknown widget
// names fall back to WidgetAuto.
func ParseTag(tag string) (Widget, Options) {
	opts := Options{}
	name, rest, _ := strings.Cut(tag, ",")
	w := widgetNames[strings.TrimSpace(name)]
	for rest != "" {
		var part string
		part, rest, _ = strings.Cut(rest, ",")
		if k, v, ok := strings.Cut(strings.TrimSpace(part), ":"); ok {
			opts[k] = v
		}
	}
	return w, opts
}

// ExtractFields lists the exported fields of a struct or non-nil struct
// pointer. Anything else yields nil.
func ExtractFields(value any) []Field {
	v := reflect.Indirect(reflect.ValueOf(value))
	if v.Kind() != reflect.Struct {
		return nil
	}

	var fields []Field
	for _, sf := range reflect.VisibleFields(v.Type()) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		w, opts := ParseTag(sf.Tag.Get("inspect"))
		if w == WidgetSkip {
			continue
		}
		fv := v.FieldByIndex(sf.Index)
		if w == WidgetAuto {
			w = WidgetLabel
			if fv.Kind() == reflect.Bool {
				w = WidgetBool
			}
		}
		fields = append(fields, Field{Name: sf.Name, Value: fv.Interface(), Widget: w, Options: opts})
	}
	return fields
}

// FormatValue renders value with the fmt verb when one is given.
func FormatValue(value any, verb string) string {
	if verb != "" {
		return fmt.Sprintf(verb, value)
	}
	switch v := value.(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'f', 2, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case time.Duration:
		return v.Round(time.Microsecond).String()
	case string:
		if v == "" {
			return "-"
		}
		return v
	}
	return fmt.Sprint(value)
}

// numeric widens any integer or float kind to float64.
func numeric(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch {
	case v.CanFloat():
		return v.Float(), true
	case v.CanInt():
		return float64(v.Int()), true
	case v.CanUint():
		return float64(v.Uint()), true
	}
	return 0, false
}
