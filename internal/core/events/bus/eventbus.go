package bus

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNilHandler is returned when subscribing without a handler.
var ErrNilHandler = errors.New("event handler is nil")

type simpleEvent struct {
	kind   string
	source string
	ts     time.Time
	data   any
}

func (e simpleEvent) Kind() string         { return e.kind }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a basic Event stamped with the current time.
func NewEvent(kind, source string, data any) Event {
	return simpleEvent{kind: kind, source: source, ts: time.Now(), data: data}
}

type subscription struct {
	id      string
	kind    string
	handler EventHandler
	mu      sync.Mutex
	active  bool
	cancel  func()
}

func (s *subscription) ID() string   { return s.id }
func (s *subscription) Kind() string { return s.kind }

func (s *subscription) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *subscription) Cancel() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()
	s.cancel()
	return nil
}

// inMemoryBus keeps handlers per kind in subscription order.
type inMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]*subscription
	metrics   EventBusMetrics
	observers map[EventBusObserver]struct{}
}

// New creates a new EventBus instance.
func New() EventBus {
	return &inMemoryBus{
		handlers:  make(map[string][]*subscription),
		observers: make(map[EventBusObserver]struct{}),
	}
}

func (b *inMemoryBus) Subscribe(kind string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	s := &subscription{id: uuid.NewString(), kind: kind, handler: handler, active: true}
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[kind] = slices.DeleteFunc(b.handlers[kind], func(o *subscription) bool { return o == s })
		if len(b.handlers[kind]) == 0 {
			delete(b.handlers, kind)
		}
	}

	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], s)
	b.mu.Unlock()
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *inMemoryBus) Publish(event Event) error {
	start := time.Now()
	kind := event.Kind()

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.handlers[kind])+len(b.handlers[AllKinds]))
	subs = append(subs, b.handlers[kind]...)
	if kind != AllKinds {
		subs = append(subs, b.handlers[AllKinds]...)
	}
	observers := make([]EventBusObserver, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(kind, event)
	}

	var all error
	delivered := 0
	for _, s := range subs {
		// a handler earlier in this delivery may have cancelled s
		if !s.IsActive() {
			continue
		}
		delivered++
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	if len(observers) == 0 {
		return all
	}

	dur := time.Since(start).Microseconds()
	for _, obs := range observers {
		obs.OnDelivered(kind, delivered, all, dur)
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(delivered)
	if all != nil {
		b.metrics.Errors++
	}
	var active uint64
	for _, m := range b.handlers {
		active += uint64(len(m))
	}
	b.metrics.SubscribersActive = active
	b.mu.Unlock()
	return all
}
