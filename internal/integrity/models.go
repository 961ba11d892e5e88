package integrity

import (
	"time"

	id "sentra/pkg/domain"
)

// SignalKind classifies a fraud signal.
type SignalKind string

const (
	KindGPSSpoofing  SignalKind = "gps_spoofing"
	KindOutOfZone    SignalKind = "out_of_zone"
	KindMockLocation SignalKind = "mock_location"
)

// Severity grades a fraud signal.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// LocationSample is one position report. Samples are append-only and ordered
// per agent by RecordedAt, never by arrival order.
type LocationSample struct {
	ID             id.SampleID
	AgentID        id.AgentID
	EventID        *id.EventID
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	SpeedKmh       *float64
	Heading        *float64
	BatteryLevel   *float64
	IsMockLocation bool
	RecordedAt     time.Time
	// Derived at processing time.
	IsWithinGeofence  *bool
	DistanceFromEvent int
	DeviceInfo        string
}

// FraudSignal is an anomaly raised by the monitor. Created here; mutated only
// by the resolve action.
type FraudSignal struct {
	ID         id.SignalID
	AgentID    id.AgentID
	EventID    *id.EventID
	Kind       SignalKind
	Severity   Severity
	Details    map[string]any
	Latitude   float64
	Longitude  float64
	CreatedAt  time.Time
	ResolvedBy *string
	ResolvedAt *time.Time
	Resolution *string
}

// Resolved reports whether the signal has been closed out.
func (s *FraudSignal) Resolved() bool { return s.ResolvedAt != nil }
