package http

import (
	"errors"
	"fmt"
	"sync"

	"live-quiz-service/internal/domain"
)

var errSendBufferFull = errors.New("send buffer full")

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Hub owns the outbound queue of every live websocket and implements
// relay.Pusher. Sends never block: a client whose queue is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan outboundMessage[any]
	buffer  int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{clients: make(map[string]chan outboundMessage[any]), buffer: buffer}
}

// Register creates the outbound queue for a connection. The queue is closed by Unregister.
func (h *Hub) Register(connectionID string) <-chan outboundMessage[any] {
	ch := make(chan outboundMessage[any], h.buffer)
	h.mu.Lock()
	if old, ok := h.clients[connectionID]; ok {
		close(old)
	}
	h.clients[connectionID] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[connectionID]; ok {
		delete(h.clients, connectionID)
		close(ch)
	}
}

func (h *Hub) SendToConnection(connectionID, event string, payload any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.clients[connectionID]
	if !ok {
		return fmt.Errorf("%s: %w", connectionID, domain.ErrConnectionNotFound)
	}
	select {
	case ch <- outboundMessage[any]{Type: event, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("%s: %w", connectionID, errSendBufferFull)
	}
}

// SendToConnections attempts every recipient and joins the failures.
func (h *Hub) SendToConnections(connectionIDs []string, event string, payload any) error {
	var errs []error
	for _, id := range connectionIDs {
		if err := h.SendToConnection(id, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
