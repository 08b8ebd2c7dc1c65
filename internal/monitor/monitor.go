// Package monitor carries progress and error events out of a reconciliation
// run. Observers are passed explicitly to the operation that emits them.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindStart         Kind = "start"
	KindSnapshotSaved Kind = "snapshot_saved"
	KindChanges       Kind = "changes"
	KindDeleted       Kind = "deleted"
	KindRendered      Kind = "rendered"
	KindRenderFailed  Kind = "render_failed"
	KindWarning       Kind = "warning"
	KindDone          Kind = "done"
	KindError         Kind = "error"
)

// Event is one observation from an operation. Number is set for per-article
// events; Count carries a size where one applies.
type Event struct {
	Time      time.Time
	Kind      Kind
	Operation string
	Number    string
	Count     int
	Message   string
	Err       error
}

// Observer receives events. Implementations must be safe for concurrent use
// when shared between operations.
type Observer interface {
	Notify(Event)
}

// Func adapts a plain function to the Observer interface.
type Func func(Event)

// Notify implements Observer.
func (f Func) Notify(e Event) { f(e) }

// Nop discards every event.
type Nop struct{}

// Notify implements Observer.
func (Nop) Notify(Event) {}

// Multi fans out events to several observers, in order.
type Multi []Observer

// Notify implements Observer.
func (m Multi) Notify(e Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(e)
		}
	}
}

// LogObserver writes events as structured log lines. Failures log at warn,
// operation errors at error, everything else at info.
type LogObserver struct {
	Logger *slog.Logger
}

// Notify implements Observer.
func (o *LogObserver) Notify(e Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{slog.String("event", string(e.Kind))}
	if e.Operation != "" {
		attrs = append(attrs, slog.String("op", e.Operation))
	}
	if e.Number != "" {
		attrs = append(attrs, slog.String("number", e.Number))
	}
	if e.Count > 0 {
		attrs = append(attrs, slog.Int("count", e.Count))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	level := slog.LevelInfo
	switch e.Kind {
	case KindRenderFailed, KindWarning:
		level = slog.LevelWarn
	case KindError:
		level = slog.LevelError
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Recorder is an append-only, thread-safe event log.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Observer.
func (r *Recorder) Notify(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Since returns a copy of events from index idx onward. A negative idx is
// clamped to 0; idx past the end yields nil.
func (r *Recorder) Since(idx int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.events) {
		return nil
	}
	out := make([]Event, len(r.events)-idx)
	copy(out, r.events[idx:])
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
