package layer

import (
	"log/slog"
	"sync"
)

// EventKind identifies a layer event.
type EventKind string

const (
	EventAttached       EventKind = "attached"
	EventSourceLoaded   EventKind = "source_loaded"
	EventSourceFailed   EventKind = "source_failed"
	EventSourceDegraded EventKind = "source_degraded"
	EventDetached       EventKind = "detached"
)

// Event is delivered to handlers on the render thread.
type Event struct {
	Kind  EventKind
	Layer string
	URL   string
	Seq   uint64
	Err   error
}

// LogValue implements slog.LogValuer.
func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("layer", e.Layer),
	}
	if e.URL != "" {
		attrs = append(attrs, slog.String("url", e.URL))
	}
	if e.Seq != 0 {
		attrs = append(attrs, slog.Uint64("seq", e.Seq))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Handler receives events.
type Handler func(Event)

// Emitter is a minimal event bus. Embed it by value; the zero value is ready.
type Emitter struct {
	mu       sync.Mutex
	handlers map[EventKind][]Handler
}

// On registers fn for kind.
func (e *Emitter) On(kind EventKind, fn Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[EventKind][]Handler)
	}
	e.handlers[kind] = append(e.handlers[kind], fn)
}

// Emit calls every handler registered for ev.Kind, in registration order.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	hs := append([]Handler(nil), e.handlers[ev.Kind]...)
	e.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}
