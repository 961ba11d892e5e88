package integrity

import (
	"context"
	"time"

	id "sentra/pkg/domain"
)

// SampleStore persists the append-only location history.
type SampleStore interface {
	Insert(ctx context.Context, sample *LocationSample) error
	// LastBefore returns the agent's sample with the greatest RecordedAt
	// strictly before t, or sentinel.ErrNotFound for a first-ever sample.
	// Ordering is by RecordedAt so concurrent delivery can never pair a
	// sample with itself or with a later-timestamped one.
	LastBefore(ctx context.Context, agentID id.AgentID, t time.Time) (*LocationSample, error)
	// ListByAgent returns recent samples, newest first.
	ListByAgent(ctx context.Context, agentID id.AgentID, limit int) ([]*LocationSample, error)
}

// SignalFilter narrows signal listings.
type SignalFilter struct {
	AgentID    *id.AgentID
	EventID    *id.EventID
	Unresolved bool
}

// SignalStore persists fraud signals.
type SignalStore interface {
	Insert(ctx context.Context, signal *FraudSignal) error
	FindByID(ctx context.Context, signalID id.SignalID) (*FraudSignal, error)
	List(ctx context.Context, filter SignalFilter) ([]*FraudSignal, error)
	// Resolve closes a signal. Returns sentinel.ErrInvalidState when the
	// signal is already resolved.
	Resolve(ctx context.Context, signalID id.SignalID, resolvedBy, resolution string, at time.Time) (*FraudSignal, error)
}

// OffenseCounter tracks repeat out-of-zone offenses per (agent, event) inside
// a rolling window.
type OffenseCounter interface {
	Incr(ctx context.Context, agentID id.AgentID, eventID id.EventID) (int, error)
}
