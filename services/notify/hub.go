package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
)

// queueSize bounds the number of pending events; events broadcast to a full queue are dropped.
const queueSize = 256

// Handler handles a single event. Returned errors are logged, never propagated to the publisher.
type Handler func(ctx context.Context, evt core.Event) error

// Hub fans events out to the handlers subscribed to their topic.
// Subscribers are registered before the hub starts delivering and are called from a single worker.
type Hub struct {
	logger core.Logger
	inline bool

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	queue chan core.Event
	done  chan struct{}
}

var _ core.Broadcaster = (*Hub)(nil)

// NewHub returns a Hub delivering events asynchronously.
func NewHub(logger core.Logger) *Hub {
	h := &Hub{
		logger:   logger,
		handlers: make(map[string][]Handler),
		queue:    make(chan core.Event, queueSize),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// NewSyncHub returns a Hub delivering events on the caller's goroutine.
func NewSyncHub(logger core.Logger) *Hub {
	return &Hub{
		logger:   logger,
		inline:   true,
		handlers: make(map[string][]Handler),
	}
}

func (h *Hub) Subscribe(topic string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[topic] = append(h.handlers[topic], handler)
}

func (h *Hub) Broadcast(ctx context.Context, evt core.Event) {
	if h.inline {
		h.deliver(ctx, evt)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.logger.Warn(fmt.Sprintf("notify.Hub: dropping %q event, hub closed", evt.Topic))
		return
	}
	select {
	case h.queue <- evt:
	default:
		h.logger.Warn(fmt.Sprintf("notify.Hub: dropping %q event, queue full", evt.Topic))
	}
}

// Close stops accepting events and waits until the pending ones are delivered.
func (h *Hub) Close() {
	if h.inline {
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()

	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for evt := range h.queue {
		// the publisher's request context is gone by now
		h.deliver(context.Background(), evt)
	}
}

func (h *Hub) deliver(ctx context.Context, evt core.Event) {
	h.mu.RLock()
	handlers := h.handlers[evt.Topic]
	h.mu.RUnlock()

	for _, handle := range handlers {
		h.call(ctx, handle, evt)
	}
}

func (h *Hub) call(ctx context.Context, handle Handler, evt core.Event) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			h.logger.Error(fmt.Sprintf("notify.Hub(%s): %v", evt.Topic, err), err)
		}
	}()
	if err := handle(ctx, evt); err != nil {
		h.logger.Error(fmt.Sprintf("notify.Hub(%s): %v", evt.Topic, err), err, map[string]interface{}{"room": evt.Room})
	}
}
