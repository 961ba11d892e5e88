// Package policy is the role authorization table for attendance actions. It
// is a pure function of (actor role, actor id, target agent, action) so the
// rules are testable without any HTTP or store plumbing.
package policy

import id "sentra/pkg/domain"

// Action enumerates the operations the policy covers.
type Action string

const (
	ActionCheckIn          Action = "check_in"
	ActionCheckOut         Action = "check_out"
	ActionMarkAbsent       Action = "mark_absent"
	ActionManualCorrection Action = "manual_correction"
	ActionResolveSignal    Action = "resolve_signal"
)

// Allow reports whether the actor may perform the action for the target
// agent.
func Allow(role id.Role, actor id.ActorID, target id.AgentID, action Action) bool {
	self := actor.String() == target.String()

	switch role {
	case id.RoleAdmin:
		return true
	case id.RoleSupervisor:
		switch action {
		case ActionCheckIn, ActionCheckOut, ActionMarkAbsent, ActionResolveSignal:
			return true
		}
		return false
	case id.RoleAgent:
		switch action {
		case ActionCheckIn, ActionCheckOut:
			return self
		}
		return false
	}
	return false
}
