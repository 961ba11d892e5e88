// Package attendance implements the check-in/check-out state machine and the
// one-record-per-(agent, event, day) guarantee behind it.
package attendance

import (
	"math"
	"time"

	id "sentra/pkg/domain"
)

// Status is the attendance lifecycle state. The automatic path moves
// present/late to early_departure only; manual correction may set anything.
type Status string

const (
	StatusPresent        Status = "present"
	StatusLate           Status = "late"
	StatusAbsent         Status = "absent"
	StatusExcused        Status = "excused"
	StatusEarlyDeparture Status = "early_departure"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused, StatusEarlyDeparture:
		return true
	}
	return false
}

// Method is how presence was established at check-in.
type Method string

const (
	MethodFacial Method = "facial"
	MethodQRCode Method = "qrcode"
	MethodManual Method = "manual"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodFacial, MethodQRCode, MethodManual:
		return true
	}
	return false
}

// Source distinguishes who initiated a check-in from whom it was recorded
// for. A supervisor checking an agent in produces Source=supervisor on the
// agent's record.
type Source string

const (
	SourceSelf       Source = "self"
	SourceSupervisor Source = "supervisor"
	SourceAdmin      Source = "admin"
)

// SourceForRole maps the initiating actor's role to a record source.
func SourceForRole(role id.Role) Source {
	switch role {
	case id.RoleAdmin:
		return SourceAdmin
	case id.RoleSupervisor:
		return SourceSupervisor
	default:
		return SourceSelf
	}
}

// Record is one agent's attendance at one event on one date. At most one
// record exists per (AgentID, EventID, Date); the store's uniqueness
// constraint is the authority, not in-process locking.
type Record struct {
	ID      id.AttendanceID
	AgentID id.AgentID
	EventID id.EventID
	// Date is the civil day the record belongs to, midnight UTC.
	Date time.Time

	CheckInAt     *time.Time
	CheckOutAt    *time.Time
	CheckInLat    *float64
	CheckInLon    *float64
	CheckOutLat   *float64
	CheckOutLon   *float64
	Status        Status
	CheckInMethod Method

	// IsWithinGeofence is nil when the event has no configured geofence.
	IsWithinGeofence     *bool
	DistanceFromLocation int

	// CheckedInBy is set when someone other than the agent performed the
	// check-in.
	CheckedInBy *id.ActorID
	Source      Source

	FacialMatchScore *float64
	FacialVerified   bool

	// TotalHours is set at check-out, rounded to two decimals.
	TotalHours *float64

	VerifiedBy *id.ActorID
	VerifiedAt *time.Time
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
	// DeletedAt tombstones the record. Attendance is never hard-deleted.
	DeletedAt *time.Time
}

// CheckedIn reports whether the record has an open or closed check-in.
func (r *Record) CheckedIn() bool { return r.CheckInAt != nil }

// CheckedOut reports whether the record has been closed out.
func (r *Record) CheckedOut() bool { return r.CheckOutAt != nil }

// Snapshot renders the mutable fields for audit before/after trails.
func (r *Record) Snapshot() map[string]any {
	snap := map[string]any{
		"status":      string(r.Status),
		"total_hours": nil,
		"notes":       r.Notes,
	}
	if r.CheckInAt != nil {
		snap["check_in_at"] = r.CheckInAt.UTC().Format(time.RFC3339)
	}
	if r.CheckOutAt != nil {
		snap["check_out_at"] = r.CheckOutAt.UTC().Format(time.RFC3339)
	}
	if r.TotalHours != nil {
		snap["total_hours"] = *r.TotalHours
	}
	return snap
}

// DateOf truncates t to its civil day, midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Hours returns the elapsed hours between in and out, rounded to two
// decimals.
func Hours(in, out time.Time) float64 {
	return math.Round(out.Sub(in).Hours()*100) / 100
}
