package attendance

import (
	"context"
	"time"

	id "sentra/pkg/domain"
)

// Store persists attendance records. Implementations must enforce uniqueness
// over (AgentID, EventID, Date) at commit time and surface a violation as
// sentinel.ErrConflict so concurrent actors resolve to exactly one winner.
type Store interface {
	// Insert creates a record. Returns sentinel.ErrConflict when a record
	// already exists for the same (agent, event, date).
	Insert(ctx context.Context, rec *Record) error
	// Update rewrites a record's mutable fields by id.
	Update(ctx context.Context, rec *Record) error
	// Delete tombstones a record. Tombstoned records are invisible to
	// every read path.
	Delete(ctx context.Context, attendanceID id.AttendanceID, at time.Time) error

	FindByID(ctx context.Context, attendanceID id.AttendanceID) (*Record, error)
	// FindByKey looks up the unique record for (agent, event, date).
	FindByKey(ctx context.Context, agentID id.AgentID, eventID id.EventID, date time.Time) (*Record, error)
	// ListByEvent returns an event's records for a date, newest first.
	ListByEvent(ctx context.Context, eventID id.EventID, date time.Time) ([]*Record, error)
	// ListByAgentOnDate returns an agent's records across events for a date.
	ListByAgentOnDate(ctx context.Context, agentID id.AgentID, date time.Time) ([]*Record, error)
}
