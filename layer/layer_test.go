package layer

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestEmitterOrder(t *testing.T) {
	var e Emitter
	var got []string
	e.On(EventSourceLoaded, func(ev Event) { got = append(got, "a:"+ev.URL) })
	e.On(EventSourceLoaded, func(ev Event) { got = append(got, "b:"+ev.URL) })
	e.On(EventSourceFailed, func(Event) { got = append(got, "failed") })

	e.Emit(Event{Kind: EventSourceLoaded, URL: "wind_01"})
	if len(got) != 2 || got[0] != "a:wind_01" || got[1] != "b:wind_01" {
		t.Errorf("handlers = %v", got)
	}

	e.Emit(Event{Kind: EventDetached})
	if len(got) != 2 {
		t.Errorf("unrelated event reached handlers: %v", got)
	}
}

func TestEmitterReentrant(t *testing.T) {
	var e Emitter
	calls := 0
	e.On(EventAttached, func(Event) {
		calls++
		e.On(EventDetached, func(Event) { calls++ })
	})
	e.Emit(Event{Kind: EventAttached})
	e.Emit(Event{Kind: EventDetached})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestEventLogValue(t *testing.T) {
	v := Event{Kind: EventSourceFailed, Layer: "wind", Err: errors.New("boom")}.LogValue()
	if v.Kind() != slog.KindGroup {
		t.Fatalf("kind = %v", v.Kind())
	}
	found := false
	for _, a := range v.Group() {
		if a.Key == "error" && a.Value.String() == "boom" {
			found = true
		}
	}
	if !found {
		t.Error("error attr missing")
	}
}

func TestManualClock(t *testing.T) {
	var c ManualClock
	if c.Now() != 0 {
		t.Errorf("zero clock = %v", c.Now())
	}
	c.Advance(50 * time.Millisecond)
	c.Advance(25 * time.Millisecond)
	if c.Now() != 75*time.Millisecond {
		t.Errorf("now = %v", c.Now())
	}
	c.Set(time.Second)
	if c.Now() != time.Second {
		t.Errorf("now = %v", c.Now())
	}
}
