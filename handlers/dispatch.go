package handlers

import (
	"sync"

	"guard-bot/model"
)

// Dispatcher fans gateway notifications out to registered handlers. The
// core never polls the gateway; every event arrives here as one typed
// notification.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[model.NotificationType][]model.NotificationHandler
	done     <-chan struct{}
}

func NewDispatcher(done <-chan struct{}) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[model.NotificationType][]model.NotificationHandler),
		done:     done,
	}
}

// Register adds a handler for one notification type.
func (d *Dispatcher) Register(t model.NotificationType, h model.NotificationHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Dispatch delivers one notification to every handler registered for its
// type. Delivery stops once shutdown begins.
func (d *Dispatcher) Dispatch(n model.Notification) {
	select {
	case <-d.done:
		return
	default:
	}

	d.mu.RLock()
	registered := d.handlers[n.Type]
	d.mu.RUnlock()

	for _, h := range registered {
		h(n, d.done)
	}
}
