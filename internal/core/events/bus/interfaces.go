package bus

import "time"

// EventBus is an in-process pub/sub used to tell collaborators (renderers,
// network feeds, UI panels) that the sensor field changed.
//
// Key characteristics:
// - Kind-based fan-out: handlers subscribe by Event.Kind(); AllKinds receives everything.
// - Synchronous delivery: Publish runs handlers in the publisher's goroutine,
//   in subscription order.
// - Error aggregation: handler errors are joined and returned from Publish.
// - Optional observability: metrics are only accumulated while observers are registered.
//
// Handlers should be quick. The field publishes from its single writer
// context, and a slow handler stalls the frame.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Kind()
	// and of AllKinds.
	Publish(event Event) error
	// Subscribe registers a handler for one kind, or AllKinds.
	Subscribe(kind string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is ignored.
	Unsubscribe(Subscription) error

	// AddObserver registers an observer to receive delivery callbacks.
	AddObserver(obs EventBusObserver)
	// RemoveObserver unregisters a previously added observer.
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of accumulated metrics.
	GetMetrics() EventBusMetrics
}

// AllKinds subscribes a handler to every event kind.
const AllKinds = "*"

// Event is an immutable notification.
type Event interface {
	Kind() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	// EventHandler is invoked per delivered event. A returned error is
	// aggregated into Publish's result and does not stop delivery.
	EventHandler func(event Event) error
)

// Subscription is a registered handler.
type Subscription interface {
	ID() string
	Kind() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(kind string, event Event)
	OnDelivered(kind string, handlers int, err error, durationMicros int64)
}

// EventBusMetrics counts deliveries while at least one observer is registered.
type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
