package realtime

import "time"

// Envelope is the wire frame pushed to subscribers.
type Envelope struct {
	Type      string    `json:"type"`
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Domain event names published through the broadcaster.
const (
	EventCheckedIn      = "attendance.checked_in"
	EventCheckedOut     = "attendance.checked_out"
	EventAbsentMarked   = "attendance.absent_marked"
	EventCorrected      = "attendance.corrected"
	EventFraudSignal    = "fraud.signal_raised"
	EventSignalResolved = "fraud.signal_resolved"
	EventEmergencyAlert = "alert.emergency"
)

// Room key helpers. Rooms are arbitrary strings; these two shapes are the
// conventional ones dashboards subscribe to.
func EventRoom(eventID string) string { return "event:" + eventID }
func RoleRoom(role string) string     { return "role:" + role }

// Control message types accepted from clients.
const (
	controlJoinRoom  = "join_room"
	controlLeaveRoom = "leave_room"
	controlPing      = "ping"
)

// controlMessage is what clients may send over the channel.
type controlMessage struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
}
