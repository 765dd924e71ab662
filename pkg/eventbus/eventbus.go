package eventbus

import (
	"context"
	"sync"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// Handler receives a published envelope.
type Handler func(ctx context.Context, env *model.Envelope)

// EventBus provides in-process pub/sub of settings envelopes keyed by event type.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	inline   map[string][]Handler
	wg       sync.WaitGroup
}

// New creates a new EventBus
func New() *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		inline:   make(map[string][]Handler),
	}
}

// Subscribe registers a handler for an event type, or for AllEvents.
func (e *EventBus) Subscribe(eventType string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventType] = append(e.handlers[eventType], handler)
}

// SubscribeInline registers a handler that Publish runs on the caller's
// goroutine before returning. Inline handlers must be fast and non-blocking.
func (e *EventBus) SubscribeInline(eventType string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inline[eventType] = append(e.inline[eventType], handler)
}

func matching(m map[string][]Handler, eventType string) []Handler {
	out := make([]Handler, 0, len(m[eventType])+len(m[AllEvents]))
	out = append(out, m[eventType]...)
	out = append(out, m[AllEvents]...)
	return out
}

// Publish runs the inline handlers for env, then delivers it to each other
// subscriber on its own goroutine. All handlers get a context detached from
// ctx's cancellation.
func (e *EventBus) Publish(ctx context.Context, env *model.Envelope) {
	if env == nil {
		return
	}
	e.mu.RLock()
	inline := matching(e.inline, env.EventType)
	async := matching(e.handlers, env.EventType)
	e.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, h := range inline {
		h(detached, env)
	}
	for _, h := range async {
		e.wg.Add(1)
		go func(h Handler) {
			defer e.wg.Done()
			h(detached, env)
		}(h)
	}
}

// Wait blocks until every asynchronously published handler has returned.
func (e *EventBus) Wait() {
	e.wg.Wait()
}
