package session

import (
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avatarlink/avatar-sdk-go/internal/metrics"
)

// dispatcher maps event kinds to ordered handler lists for one Manager.
// Delivery is synchronous and in registration order. A handler that panics
// is logged and does not stop delivery to later handlers or reach the
// emitter.
type dispatcher struct {
	info Info
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[Kind][]*registration
}

// registration is one subscription cell. Allocating a cell per call gives
// every registration a distinct identity even when two closures share a code
// pointer.
type registration struct {
	handler Handler
}

func newDispatcher(info Info, log zerolog.Logger) *dispatcher {
	return &dispatcher{
		info:     info,
		log:      log.With().Str("component", "event-dispatcher").Logger(),
		handlers: make(map[Kind][]*registration),
	}
}

// on appends handler to the list for kind and returns a func that removes
// exactly this registration. The returned func is idempotent.
func (d *dispatcher) on(kind Kind, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	reg := &registration{handler: handler}
	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], reg)
	d.mu.Unlock()
	return func() { d.unsubscribe(kind, reg) }
}

// unsubscribe removes one registration cell. A cell already removed (or
// dropped by clear) is a no-op.
func (d *dispatcher) unsubscribe(kind Kind, reg *registration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.handlers[kind]
	for i, r := range list {
		if r == reg {
			d.handlers[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// off removes the first registration of handler for kind. Removing a handler
// that was never registered is a no-op. Go functions are not comparable, so
// identity is matched by code pointer; closures created at the same source
// location share one, so closure subscribers must unsubscribe through the
// func returned by on.
func (d *dispatcher) off(kind Kind, handler Handler) {
	if handler == nil {
		return
	}
	target := reflect.ValueOf(handler).Pointer()

	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.handlers[kind]
	for i, r := range list {
		if reflect.ValueOf(r.handler).Pointer() == target {
			d.handlers[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// clear drops every registered handler. Called on manager teardown.
func (d *dispatcher) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[Kind][]*registration)
}

// emit delivers one event to every handler registered for kind. With no
// handlers registered this is a no-op.
func (d *dispatcher) emit(kind Kind, payload any) {
	d.mu.Lock()
	list := d.handlers[kind]
	snapshot := make([]*registration, len(list))
	copy(snapshot, list)
	d.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	event := Event{
		Kind:      kind,
		Session:   d.info,
		EmittedAt: time.Now(),
		Payload:   payload,
	}

	for _, reg := range snapshot {
		d.invoke(kind, reg.handler, event)
	}
	metrics.RecordEventDispatched(string(kind))
}

func (d *dispatcher) invoke(kind Kind, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("kind", string(kind)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	handler(event)
}
