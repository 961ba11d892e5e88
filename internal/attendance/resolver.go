package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/sentinel"
)

// DuplicateResolver answers "does attendance already exist for this agent at
// this event today, and who recorded it". The pre-check is advisory; the
// store's uniqueness constraint is the real arbiter under concurrent actors.
type DuplicateResolver struct {
	store Store
}

func NewDuplicateResolver(store Store) *DuplicateResolver {
	return &DuplicateResolver{store: store}
}

// Existing returns the record already occupying (agent, event, date), or nil
// when the slot is free.
func (r *DuplicateResolver) Existing(ctx context.Context, agentID id.AgentID, eventID id.EventID, date time.Time) (*Record, error) {
	rec, err := r.store.FindByKey(ctx, agentID, eventID, date)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}
	return rec, nil
}

// Conflict builds the loser's error for an occupied slot: a conflict carrying
// the winning record's identity and attribution, never a silent overwrite.
// When the winner cannot be re-read (lost a race with a tombstone) the bare
// conflict still stands.
func (r *DuplicateResolver) Conflict(ctx context.Context, agentID id.AgentID, eventID id.EventID, date time.Time) error {
	winner, err := r.Existing(ctx, agentID, eventID, date)
	if err != nil || winner == nil {
		return domainerrors.New(domainerrors.CodeConflict, conflictMessage)
	}
	return r.ConflictWith(winner)
}

const conflictMessage = "attendance already recorded for this agent, event and date"

// ConflictWith builds the conflict error for a known winning record.
func (r *DuplicateResolver) ConflictWith(winner *Record) error {
	details := map[string]any{
		"attendance_id": winner.ID.String(),
		"status":        string(winner.Status),
		"attribution":   Attribution(winner),
	}
	if winner.CheckedInBy != nil {
		details["checked_in_by"] = winner.CheckedInBy.String()
	}
	return domainerrors.New(domainerrors.CodeConflict, conflictMessage).WithDetails(details)
}

// Attribution renders who recorded the attendance, distinguishing the
// performing actor from the subject agent.
func Attribution(rec *Record) string {
	switch rec.Source {
	case SourceSupervisor:
		return "performed by supervisor " + actorLabel(rec.CheckedInBy)
	case SourceAdmin:
		return "performed by admin " + actorLabel(rec.CheckedInBy)
	default:
		return "performed by self"
	}
}

func actorLabel(actorID *id.ActorID) string {
	if actorID == nil {
		return "unknown"
	}
	return actorID.String()
}
