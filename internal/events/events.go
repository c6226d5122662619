// Package events fans task changes out to live subscribers.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const subscriberBufSize = 32

// Event types and actions
const (
	TypeTaskUpdate = "TASK_UPDATE"

	ActionCreate           = "CREATE"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
	ActionBulkMarkComplete = "BULK_MARK_COMPLETE"
)

// Event describes one change to a user's tasks
type Event struct {
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	UserID    string    `json:"userId"`
	TaskID    string    `json:"taskId,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(evt Event)
}

// Hub delivers events to the subscribers of the event's user.
// Publish never blocks; a full subscriber misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe returns a channel of the user's events and a func that cancels the subscription
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufSize)

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan Event]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[userID], ch)
			if len(h.subscribers[userID]) == 0 {
				delete(h.subscribers, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[evt.UserID] {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("Subscriber channel full, event dropped",
				zap.String("user_id", evt.UserID),
				zap.String("action", evt.Action))
		}
	}
}

// Subscribers returns the number of live subscriptions for userID
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}
