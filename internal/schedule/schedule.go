// Package schedule exposes the read-only view of events and agent assignments
// consumed by the attendance engine. Event and assignment lifecycle is owned
// by an external planning system; this core never mutates them.
package schedule

import (
	"context"
	"time"

	"sentra/internal/geofence"
	id "sentra/pkg/domain"
)

// Event is a time-boxed assignment site. Center is nil when the event has no
// configured geofence.
type Event struct {
	ID           id.EventID
	Name         string
	CheckInAt    time.Time
	CheckOutAt   time.Time
	Center       *geofence.Point
	RadiusMeters float64
	Supervisors  []id.ActorID
}

// Assignment confirms an agent is scheduled for an event.
type Assignment struct {
	AgentID   id.AgentID
	EventID   id.EventID
	Confirmed bool
}

// Store is the read-only lookup interface backed by the planning system.
type Store interface {
	EventByID(ctx context.Context, eventID id.EventID) (*Event, error)
	// AssignmentFor returns sentinel.ErrNotFound when the agent is not
	// scheduled for the event at all.
	AssignmentFor(ctx context.Context, agentID id.AgentID, eventID id.EventID) (*Assignment, error)
}
