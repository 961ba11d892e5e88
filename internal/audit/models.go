package audit

import (
	"context"
	"time"

	id "sentra/pkg/domain"
)

// Action names the audited operation.
type Action string

const (
	ActionManualCorrection Action = "attendance_manual_correction"
	ActionAbsentMarked     Action = "attendance_absent_marked"
	ActionFraudSignal      Action = "fraud_signal_raised"
	ActionSignalResolved   Action = "fraud_signal_resolved"
)

// Event is emitted from domain logic to capture actions that must survive for
// audit. Keep it transport-agnostic so stores and sinks can fan out.
//
// ActorID tracks who performed the action; AgentID whom it was performed for.
// For manual corrections Before and After carry the full record snapshots so
// the only path allowed to bypass transition guards is always reconstructable.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    Action         `json:"action"`
	ActorID   string         `json:"actor_id,omitempty"`
	ActorRole string         `json:"actor_role,omitempty"`
	AgentID   id.AgentID     `json:"agent_id"`
	EventID   id.EventID     `json:"event_id"`
	RequestID string         `json:"request_id,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
