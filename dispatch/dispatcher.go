// Package dispatch routes named events to prioritized handlers. A
// Dispatcher configured as the avatar client's event sink receives delivery
// lifecycle events, so embedding applications can react to failovers and
// health transitions without polling.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

const defaultMaxHistory = 1000

// Event is one dispatched occurrence.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler processes one event. A returned error is recorded per handler and
// never stops the remaining handlers.
type Handler func(ctx context.Context, ev Event) error

// HandlerResult reports one handler's outcome for an event.
type HandlerResult struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Err      error  `json:"-"`
}

// Stats summarizes dispatcher activity.
type Stats struct {
	TotalEvents   int            `json:"total_events"`
	EventsByType  map[string]int `json:"events_by_type"`
	HandlerErrors int            `json:"handler_errors"`
	LastEventTime time.Time      `json:"last_event_time"`
	Registered    map[string]int `json:"registered_handlers"`
}

type registration struct {
	name     string
	priority int
	fn       Handler
}

// Dispatcher routes events to handlers, highest priority first. Safe for
// concurrent use.
type Dispatcher struct {
	mu sync.Mutex

	handlers   map[string][]registration
	history    []Event
	maxHistory int

	totalEvents   int
	eventsByType  map[string]int
	handlerErrors int
	lastEventTime time.Time

	logger *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMaxHistory bounds the retained event history.
func WithMaxHistory(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxHistory = n
		}
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers:     make(map[string][]registration),
		maxHistory:   defaultMaxHistory,
		eventsByType: make(map[string]int),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a named handler for an event type. Higher priority handlers
// run first; ties run in registration order.
func (d *Dispatcher) Register(eventType, name string, priority int, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], registration{
		name:     name,
		priority: priority,
		fn:       fn,
	})
	sort.SliceStable(d.handlers[eventType], func(i, j int) bool {
		return d.handlers[eventType][i].priority > d.handlers[eventType][j].priority
	})

	d.logger.Info("registered event handler",
		zap.String("event_type", eventType),
		zap.String("handler", name),
		zap.Int("priority", priority))
}

// RegisterWildcard adds a handler that receives every event.
func (d *Dispatcher) RegisterWildcard(name string, priority int, fn Handler) {
	d.Register(Wildcard, name, priority, fn)
}

// Unregister removes all handlers with the given name for an event type and
// reports whether any were removed.
func (d *Dispatcher) Unregister(eventType, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[eventType]
	kept := regs[:0]
	for _, r := range regs {
		if r.name != name {
			kept = append(kept, r)
		}
	}
	removed := len(regs) - len(kept)
	if removed == 0 {
		return false
	}
	d.handlers[eventType] = kept
	d.logger.Info("unregistered event handlers",
		zap.String("event_type", eventType),
		zap.String("handler", name),
		zap.Int("removed", removed))
	return true
}

// Dispatch delivers an event to its typed handlers and all wildcard
// handlers, and returns one result per handler invoked.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType, source string, data map[string]any) []HandlerResult {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}

	d.mu.Lock()
	d.totalEvents++
	d.eventsByType[eventType]++
	d.lastEventTime = ev.Timestamp
	d.history = append(d.history, ev)
	if len(d.history) > d.maxHistory {
		d.history = d.history[1:]
	}

	regs := make([]registration, 0, len(d.handlers[eventType])+len(d.handlers[Wildcard]))
	regs = append(regs, d.handlers[eventType]...)
	if eventType != Wildcard {
		regs = append(regs, d.handlers[Wildcard]...)
	}
	d.mu.Unlock()

	if len(regs) == 0 {
		// Unhandled events still land in history and stats.
		d.logger.Debug("no handlers registered for event type",
			zap.String("event_type", eventType))
		return nil
	}

	results := make([]HandlerResult, 0, len(regs))
	for _, r := range regs {
		err := safeInvoke(ctx, r.fn, ev)
		if err != nil {
			d.mu.Lock()
			d.handlerErrors++
			d.mu.Unlock()
			d.logger.Error("event handler failed",
				zap.String("event_type", eventType),
				zap.String("handler", r.name),
				zap.Error(err))
		}
		results = append(results, HandlerResult{Name: r.name, Priority: r.priority, Err: err})
	}
	return results
}

// Emit dispatches an event fire-and-forget, for emitters that have no use
// for per-handler results. It satisfies avatar.EventSink.
func (d *Dispatcher) Emit(ctx context.Context, eventType, source string, data map[string]any) {
	d.Dispatch(ctx, eventType, source, data)
}

// safeInvoke converts a handler panic into an error so one misbehaving
// subscriber cannot take down delivery.
func safeInvoke(ctx context.Context, fn Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(ctx, ev)
}

// History returns up to limit most recent events, optionally filtered by
// type. An empty eventType matches everything.
func (d *Dispatcher) History(eventType string, limit int) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	out := make([]Event, 0, limit)
	for i := len(d.history) - 1; i >= 0 && len(out) < limit; i-- {
		if eventType == "" || d.history[i].Type == eventType {
			out = append(out, d.history[i])
		}
	}
	// Oldest first, matching insertion order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Statistics returns a snapshot of dispatcher activity.
func (d *Dispatcher) Statistics() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	byType := make(map[string]int, len(d.eventsByType))
	for k, v := range d.eventsByType {
		byType[k] = v
	}
	registered := make(map[string]int, len(d.handlers))
	for k, v := range d.handlers {
		registered[k] = len(v)
	}
	return Stats{
		TotalEvents:   d.totalEvents,
		EventsByType:  byType,
		HandlerErrors: d.handlerErrors,
		LastEventTime: d.lastEventTime,
		Registered:    registered,
	}
}

// ClearHistory drops the retained events.
func (d *Dispatcher) ClearHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// TypeOf extracts the event type from a prefixed message such as
// "TACTICAL: goal scored" and returns the remainder as payload. Messages
// without an uppercase prefix map to the fallback type.
func TypeOf(message, fallback string) (eventType, payload string) {
	idx := strings.Index(message, ":")
	if idx <= 0 {
		return fallback, message
	}
	prefix := message[:idx]
	if prefix != strings.ToUpper(prefix) {
		return fallback, message
	}
	return prefix, strings.TrimSpace(message[idx+1:])
}
