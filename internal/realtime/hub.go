// Package realtime is the fan-out layer keeping supervisory dashboards in
// sync. Delivery is best-effort to currently-open connections: no outbox, no
// replay for reconnecting clients.
package realtime

import (
	"log/slog"
	"sync"
	"time"

	"sentra/internal/platform/metrics"
)

// Publisher is the side of the hub exposed to domain services.
type Publisher interface {
	Publish(event string, data any)
	PublishToUser(userID string, event string, data any)
	PublishToRoom(room string, event string, data any)
}

// Subscription is one live connection. The hub writes envelopes to Send;
// the transport drains it. A full buffer drops the envelope rather than
// blocking the hub. Send is never closed: publishes race disconnects, and a
// send on a closed channel would panic the publishing goroutine. Teardown is
// signaled through Done instead.
type Subscription struct {
	UserID string
	Send   chan Envelope

	done chan struct{}

	mu    sync.Mutex
	rooms map[string]struct{}
}

// Done is closed when the subscription has been removed from the hub.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) roomList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Hub maintains the two subscriber indices: by-user and by-room. All index
// mutation happens under one mutex because connect/disconnect/join/leave race
// with publishes from many request goroutines.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Subscription]struct{}
	byRoom map[string]map[*Subscription]struct{}
	all    map[*Subscription]struct{}

	logger  *slog.Logger
	metrics *metrics.Metrics
	bridge  *Bridge // nil when running single-instance
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub constructs the broadcaster.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		byUser: make(map[string]map[*Subscription]struct{}),
		byRoom: make(map[string]map[*Subscription]struct{}),
		all:    make(map[*Subscription]struct{}),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a connection for a user with its initial room list.
func (h *Hub) Subscribe(userID string, rooms []string, buffer int) *Subscription {
	sub := &Subscription{
		UserID: userID,
		Send:   make(chan Envelope, buffer),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}, len(rooms)),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[sub] = struct{}{}
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*Subscription]struct{})
	}
	h.byUser[userID][sub] = struct{}{}
	for _, room := range rooms {
		sub.rooms[room] = struct{}{}
		h.addToRoomLocked(room, sub)
	}

	if h.metrics != nil {
		h.metrics.RealtimeConnections.Inc()
	}
	return sub
}

// Unsubscribe removes a connection from every index. Must be called exactly
// once on disconnect so the indices cannot grow without bound.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[sub]; !ok {
		return
	}
	delete(h.all, sub)

	if conns := h.byUser[sub.UserID]; conns != nil {
		delete(conns, sub)
		if len(conns) == 0 {
			delete(h.byUser, sub.UserID)
		}
	}
	for _, room := range sub.roomList() {
		h.removeFromRoomLocked(room, sub)
	}
	// The membership check above makes this exactly-once. Send stays open so
	// an in-flight publish that already snapshotted this subscription cannot
	// panic; its envelope is simply never drained.
	close(sub.done)

	if h.metrics != nil {
		h.metrics.RealtimeConnections.Dec()
	}
}

// JoinRoom adds the subscription to a room after connect time.
func (h *Hub) JoinRoom(sub *Subscription, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[sub]; !ok {
		return
	}
	sub.mu.Lock()
	sub.rooms[room] = struct{}{}
	sub.mu.Unlock()
	h.addToRoomLocked(room, sub)
}

// LeaveRoom removes the subscription from a room.
func (h *Hub) LeaveRoom(sub *Subscription, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub.mu.Lock()
	delete(sub.rooms, room)
	sub.mu.Unlock()
	h.removeFromRoomLocked(room, sub)
}

func (h *Hub) addToRoomLocked(room string, sub *Subscription) {
	if h.byRoom[room] == nil {
		h.byRoom[room] = make(map[*Subscription]struct{})
	}
	h.byRoom[room][sub] = struct{}{}
}

func (h *Hub) removeFromRoomLocked(room string, sub *Subscription) {
	if conns := h.byRoom[room]; conns != nil {
		delete(conns, sub)
		if len(conns) == 0 {
			delete(h.byRoom, room)
		}
	}
}

// Publish delivers an event to every open connection.
func (h *Hub) Publish(event string, data any) {
	h.publishLocal(ScopeGlobal, "", event, data)
	h.forward(ScopeGlobal, "", event, data)
}

// PublishToUser delivers to every open connection of one user.
func (h *Hub) PublishToUser(userID string, event string, data any) {
	h.publishLocal(ScopeUser, userID, event, data)
	h.forward(ScopeUser, userID, event, data)
}

// PublishToRoom delivers to every connection currently joined to the room.
func (h *Hub) PublishToRoom(room string, event string, data any) {
	h.publishLocal(ScopeRoom, room, event, data)
	h.forward(ScopeRoom, room, event, data)
}

// PublishEmergency fans an emergency alert out on every path at once: global,
// the event room, and the supervisor's direct connections. Highest-urgency
// alerts must not depend on a single delivery path.
func (h *Hub) PublishEmergency(eventRoom, supervisorID string, data any) {
	h.Publish(EventEmergencyAlert, data)
	if eventRoom != "" {
		h.PublishToRoom(eventRoom, EventEmergencyAlert, data)
	}
	if supervisorID != "" {
		h.PublishToUser(supervisorID, EventEmergencyAlert, data)
	}
}

func (h *Hub) publishLocal(scope Scope, key, event string, data any) {
	env := Envelope{Type: "event", Event: event, Data: data, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	var targets []*Subscription
	switch scope {
	case ScopeGlobal:
		targets = make([]*Subscription, 0, len(h.all))
		for sub := range h.all {
			targets = append(targets, sub)
		}
	case ScopeUser:
		targets = make([]*Subscription, 0, len(h.byUser[key]))
		for sub := range h.byUser[key] {
			targets = append(targets, sub)
		}
	case ScopeRoom:
		targets = make([]*Subscription, 0, len(h.byRoom[key]))
		for sub := range h.byRoom[key] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case <-sub.done:
			// Disconnected between the snapshot and the send.
		case sub.Send <- env:
			if h.metrics != nil {
				h.metrics.RealtimeDeliveries.Inc()
			}
		default:
			// Slow consumer: drop the envelope, not the hub.
			if h.metrics != nil {
				h.metrics.RealtimeDropped.Inc()
			}
			h.logger.Warn("realtime envelope dropped",
				"user_id", sub.UserID,
				"event", event,
			)
		}
	}
}

// forward hands the publish to the cross-instance bridge when configured.
func (h *Hub) forward(scope Scope, key, event string, data any) {
	if h.bridge != nil {
		h.bridge.forward(scope, key, event, data)
	}
}
