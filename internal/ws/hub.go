package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"messaging-service/internal/models"
)

// Subscriber is the hub-facing side of a session.
type Subscriber interface {
	ConnID() string
	UserID() int
	Enqueue(payload []byte) bool
}

// Hub maintains topic rooms and fans events out to every subscribed session.
//
// Membership is idempotent: a session joined to the same topic twice still
// receives exactly one copy per publish. Publishes are serialized, so every
// subscriber of a topic observes the same relative event order.
type Hub struct {
	mu    sync.RWMutex
	rooms map[Topic]map[string]Subscriber

	// pubMu orders fan-out. Held only around snapshot + enqueue, never
	// around network writes.
	pubMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[Topic]map[string]Subscriber)}
}

// Join subscribes a session to a topic. Joining twice is a no-op.
func (h *Hub) Join(topic Topic, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[topic]
	if !ok {
		room = make(map[string]Subscriber)
		h.rooms[topic] = room
	}
	room[sub.ConnID()] = sub
}

// Leave unsubscribes a session from a topic.
func (h *Hub) Leave(topic Topic, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(topic, sub.ConnID())
}

// LeaveAll removes the session from every room it joined.
func (h *Hub) LeaveAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.rooms {
		h.removeLocked(topic, sub.ConnID())
	}
}

func (h *Hub) removeLocked(topic Topic, connID string) {
	if room, ok := h.rooms[topic]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, topic)
		}
	}
}

// CloseTopic drops a room entirely. Used when a group ceases to exist;
// any remaining sessions simply stop receiving events for it.
func (h *Hub) CloseTopic(topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, topic)
}

// MemberCount reports the number of sessions joined to a topic.
func (h *Hub) MemberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

// Publish delivers an event to every session joined to the topic exactly once
// and returns the delivered count. Publishing to an empty topic is not an
// error; it means every recipient is currently offline.
func (h *Hub) Publish(topic Topic, event models.ServerEvent) int {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("marshal hub event")
		return 0
	}

	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	room := h.rooms[topic]
	subs := make([]Subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.Enqueue(payload) {
			delivered++
		}
	}
	return delivered
}

// Broadcast delivers an event to every session in every room exactly once.
// Used for process-wide pushes such as presence changes.
func (h *Hub) Broadcast(event models.ServerEvent) int {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("marshal hub event")
		return 0
	}

	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	seen := make(map[string]Subscriber)
	for _, room := range h.rooms {
		for connID, sub := range room {
			seen[connID] = sub
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range seen {
		if sub.Enqueue(payload) {
			delivered++
		}
	}
	return delivered
}
