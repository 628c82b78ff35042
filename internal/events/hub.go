package events

import "sync"

// subscriberBuffer bounds how far one SSE client may lag before it
// starts losing events.
const subscriberBuffer = 10

// Hub fans published events out to every subscriber. Delivery is
// best-effort: a subscriber that has fallen subscriberBuffer events
// behind misses the next ones instead of blocking Publish.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{})}
}

func (h *Hub) Subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch; the subscriber must not read it afterwards.
func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Publish(evt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// subscriber is full, drop
		}
	}
}
