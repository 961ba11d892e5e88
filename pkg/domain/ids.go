// Package domain holds shared identifier types. Wrapping uuid.UUID in named
// types keeps an agent id from being passed where an event id is expected.
package domain

import "github.com/google/uuid"

type (
	// AgentID identifies a field agent (the subject of an attendance record).
	AgentID uuid.UUID
	// ActorID identifies whoever initiated an action; distinct from AgentID
	// because supervisors and admins act on behalf of agents.
	ActorID uuid.UUID
	// EventID identifies a scheduled assignment (site, shift, event).
	EventID uuid.UUID
	// AttendanceID identifies an attendance record.
	AttendanceID uuid.UUID
	// SampleID identifies a location sample.
	SampleID uuid.UUID
	// SignalID identifies a fraud signal.
	SignalID uuid.UUID
)

func NewAgentID() AgentID           { return AgentID(uuid.New()) }
func NewActorID() ActorID           { return ActorID(uuid.New()) }
func NewEventID() EventID           { return EventID(uuid.New()) }
func NewAttendanceID() AttendanceID { return AttendanceID(uuid.New()) }
func NewSampleID() SampleID         { return SampleID(uuid.New()) }
func NewSignalID() SignalID         { return SignalID(uuid.New()) }

func (id AgentID) String() string      { return uuid.UUID(id).String() }
func (id ActorID) String() string      { return uuid.UUID(id).String() }
func (id EventID) String() string      { return uuid.UUID(id).String() }
func (id AttendanceID) String() string { return uuid.UUID(id).String() }
func (id SampleID) String() string     { return uuid.UUID(id).String() }
func (id SignalID) String() string     { return uuid.UUID(id).String() }

func (id AgentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AttendanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Named uuid types do not inherit uuid.UUID's text marshaling, and without it
// encoding/json renders them as 16-element byte arrays. Serialized forms
// (audit trail, realtime payloads) need the canonical string.

func (id AgentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ActorID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id AttendanceID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SampleID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id SignalID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *AgentID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ActorID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AttendanceID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SampleID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SignalID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseAgentID parses a string form agent id.
func ParseAgentID(s string) (AgentID, error) {
	u, err := uuid.Parse(s)
	return AgentID(u), err
}

// ParseActorID parses a string form actor id.
func ParseActorID(s string) (ActorID, error) {
	u, err := uuid.Parse(s)
	return ActorID(u), err
}

// ParseEventID parses a string form event id.
func ParseEventID(s string) (EventID, error) {
	u, err := uuid.Parse(s)
	return EventID(u), err
}

// ParseAttendanceID parses a string form attendance id.
func ParseAttendanceID(s string) (AttendanceID, error) {
	u, err := uuid.Parse(s)
	return AttendanceID(u), err
}

// ParseSignalID parses a string form fraud signal id.
func ParseSignalID(s string) (SignalID, error) {
	u, err := uuid.Parse(s)
	return SignalID(u), err
}
