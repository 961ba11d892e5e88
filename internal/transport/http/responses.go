package httptransport

import (
	"time"

	"sentra/internal/attendance"
	"sentra/internal/geofence"
	"sentra/internal/integrity"
)

// attendanceResponse is the wire form of an attendance record.
type attendanceResponse struct {
	ID                   string     `json:"id"`
	AgentID              string     `json:"agentId"`
	EventID              string     `json:"eventId"`
	Date                 string     `json:"date"`
	CheckInTime          *time.Time `json:"checkInTime,omitempty"`
	CheckOutTime         *time.Time `json:"checkOutTime,omitempty"`
	CheckInLatitude      *float64   `json:"checkInLatitude,omitempty"`
	CheckInLongitude     *float64   `json:"checkInLongitude,omitempty"`
	CheckOutLatitude     *float64   `json:"checkOutLatitude,omitempty"`
	CheckOutLongitude    *float64   `json:"checkOutLongitude,omitempty"`
	Status               string     `json:"status"`
	CheckInMethod        string     `json:"checkInMethod"`
	IsWithinGeofence     *bool      `json:"isWithinGeofence"`
	DistanceFromLocation int        `json:"distanceFromLocation"`
	CheckedInBy          *string    `json:"checkedInBy,omitempty"`
	CheckInSource        string     `json:"checkInSource"`
	FacialMatchScore     *float64   `json:"facialMatchScore,omitempty"`
	FacialVerified       bool       `json:"facialVerified"`
	TotalHours           *float64   `json:"totalHours,omitempty"`
	VerifiedBy           *string    `json:"verifiedBy,omitempty"`
	VerifiedAt           *time.Time `json:"verifiedAt,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

func toAttendanceResponse(rec *attendance.Record) attendanceResponse {
	resp := attendanceResponse{
		ID:                   rec.ID.String(),
		AgentID:              rec.AgentID.String(),
		EventID:              rec.EventID.String(),
		Date:                 rec.Date.Format("2006-01-02"),
		CheckInTime:          rec.CheckInAt,
		CheckOutTime:         rec.CheckOutAt,
		CheckInLatitude:      rec.CheckInLat,
		CheckInLongitude:     rec.CheckInLon,
		CheckOutLatitude:     rec.CheckOutLat,
		CheckOutLongitude:    rec.CheckOutLon,
		Status:               string(rec.Status),
		CheckInMethod:        string(rec.CheckInMethod),
		IsWithinGeofence:     rec.IsWithinGeofence,
		DistanceFromLocation: rec.DistanceFromLocation,
		CheckInSource:        string(rec.Source),
		FacialMatchScore:     rec.FacialMatchScore,
		FacialVerified:       rec.FacialVerified,
		TotalHours:           rec.TotalHours,
		VerifiedAt:           rec.VerifiedAt,
		Notes:                rec.Notes,
	}
	if rec.CheckedInBy != nil {
		s := rec.CheckedInBy.String()
		resp.CheckedInBy = &s
	}
	if rec.VerifiedBy != nil {
		s := rec.VerifiedBy.String()
		resp.VerifiedBy = &s
	}
	return resp
}

type checkInResponse struct {
	Attendance attendanceResponse `json:"attendance"`
	Geofence   geofenceResponse   `json:"geofence"`
	Alerts     []string           `json:"alerts,omitempty"`
}

type geofenceResponse struct {
	Containment    string `json:"containment"`
	IsWithin       *bool  `json:"isWithinGeofence"`
	DistanceMeters int    `json:"distanceMeters"`
}

func toGeofenceResponse(v geofence.Verdict) geofenceResponse {
	return geofenceResponse{
		Containment:    string(v.Containment),
		IsWithin:       v.IsWithin(),
		DistanceMeters: v.DistanceMeters,
	}
}

// locationReportResponse answers an accepted position report.
type locationReportResponse struct {
	IsWithinGeofence  *bool    `json:"isWithinGeofence"`
	DistanceFromEvent int      `json:"distanceFromEvent"`
	Alerts            []string `json:"alerts"`
}

type fraudSignalResponse struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agentId"`
	EventID    *string        `json:"eventId,omitempty"`
	Kind       string         `json:"kind"`
	Severity   string         `json:"severity"`
	Details    map[string]any `json:"details,omitempty"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	CreatedAt  time.Time      `json:"createdAt"`
	ResolvedBy *string        `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	Resolution *string        `json:"resolution,omitempty"`
}

func toFraudSignalResponse(s *integrity.FraudSignal) fraudSignalResponse {
	resp := fraudSignalResponse{
		ID:         s.ID.String(),
		AgentID:    s.AgentID.String(),
		Kind:       string(s.Kind),
		Severity:   string(s.Severity),
		Details:    s.Details,
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
		CreatedAt:  s.CreatedAt,
		ResolvedBy: s.ResolvedBy,
		ResolvedAt: s.ResolvedAt,
		Resolution: s.Resolution,
	}
	if s.EventID != nil {
		e := s.EventID.String()
		resp.EventID = &e
	}
	return resp
}

type locationSampleResponse struct {
	ID                string    `json:"id"`
	AgentID           string    `json:"agentId"`
	EventID           *string   `json:"eventId,omitempty"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Accuracy          float64   `json:"accuracy"`
	Speed             *float64  `json:"speed,omitempty"`
	Heading           *float64  `json:"heading,omitempty"`
	BatteryLevel      *float64  `json:"batteryLevel,omitempty"`
	RecordedAt        time.Time `json:"recordedAt"`
	IsWithinGeofence  *bool     `json:"isWithinGeofence"`
	DistanceFromEvent int       `json:"distanceFromEvent"`
}

func toLocationSampleResponse(s *integrity.LocationSample) locationSampleResponse {
	resp := locationSampleResponse{
		ID:                s.ID.String(),
		AgentID:           s.AgentID.String(),
		Latitude:          s.Latitude,
		Longitude:         s.Longitude,
		Accuracy:          s.AccuracyMeters,
		Speed:             s.SpeedKmh,
		Heading:           s.Heading,
		BatteryLevel:      s.BatteryLevel,
		RecordedAt:        s.RecordedAt,
		IsWithinGeofence:  s.IsWithinGeofence,
		DistanceFromEvent: s.DistanceFromEvent,
	}
	if s.EventID != nil {
		e := s.EventID.String()
		resp.EventID = &e
	}
	return resp
}
