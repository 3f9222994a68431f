package avatar

import "context"

// Event types emitted by the Client when an EventSink is configured. The
// uppercase form matches the prefix convention of dispatch.TypeOf.
const (
	// EventDelivered fires after a provider accepts an utterance.
	EventDelivered = "DELIVERY_SUCCEEDED"
	// EventFailover fires each time a candidate is abandoned, whether by
	// local admission or after its retry budget.
	EventFailover = "DELIVERY_FAILOVER"
	// EventExhausted fires when every candidate has been tried and failed.
	EventExhausted = "DELIVERY_EXHAUSTED"
	// EventHealthTransition fires on every health state change.
	EventHealthTransition = "HEALTH_TRANSITION"
)

// EventSink receives delivery lifecycle events. *dispatch.Dispatcher
// satisfies it; embedders can plug any other fan-out the same way. Sinks
// are called inline on the delivery path and must not block.
type EventSink interface {
	Emit(ctx context.Context, eventType, source string, data map[string]any)
}
