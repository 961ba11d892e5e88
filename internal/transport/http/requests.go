package httptransport

import "time"

// checkInRequest is the check-in payload. AgentID is honored only for
// supervisor and admin callers acting on an agent's behalf.
type checkInRequest struct {
	EventID          string   `json:"eventId"`
	AgentID          string   `json:"agentId,omitempty"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         float64  `json:"accuracy,omitempty"`
	Photo            string   `json:"photo,omitempty"`
	Method           string   `json:"method,omitempty"`
	FacialVerified   *bool    `json:"facialVerified,omitempty"`
	FacialMatchScore *float64 `json:"facialMatchScore,omitempty"`
	DeviceInfo       string   `json:"deviceInfo,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

type checkOutRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Notes     string  `json:"notes,omitempty"`
}

type markAbsentRequest struct {
	AgentID string `json:"agentId"`
	EventID string `json:"eventId"`
	Reason  string `json:"reason"`
}

type correctionRequest struct {
	Status     *string    `json:"status,omitempty"`
	CheckInAt  *time.Time `json:"checkInTime,omitempty"`
	CheckOutAt *time.Time `json:"checkOutTime,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Reason     string     `json:"reason"`
}

// locationReportRequest is one streamed position report.
type locationReportRequest struct {
	EventID        string   `json:"eventId,omitempty"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Accuracy       float64  `json:"accuracy"`
	Speed          *float64 `json:"speed,omitempty"`
	Heading        *float64 `json:"heading,omitempty"`
	BatteryLevel   *float64 `json:"batteryLevel,omitempty"`
	IsMockLocation bool     `json:"isMockLocation"`
}

type resolveSignalRequest struct {
	Resolution string `json:"resolution"`
}

type emergencyAlertRequest struct {
	EventID string `json:"eventId,omitempty"`
	Message string `json:"message"`
}
