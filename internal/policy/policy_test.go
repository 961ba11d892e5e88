package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "sentra/pkg/domain"
)

func TestAllow(t *testing.T) {
	selfUUID := uuid.New()
	self := id.ActorID(selfUUID)
	selfAgent := id.AgentID(selfUUID)
	other := id.AgentID(uuid.New())

	tests := []struct {
		name   string
		role   id.Role
		target id.AgentID
		action Action
		want   bool
	}{
		{"agent checks in self", id.RoleAgent, selfAgent, ActionCheckIn, true},
		{"agent checks out self", id.RoleAgent, selfAgent, ActionCheckOut, true},
		{"agent cannot check in another agent", id.RoleAgent, other, ActionCheckIn, false},
		{"agent cannot mark absent", id.RoleAgent, selfAgent, ActionMarkAbsent, false},
		{"agent cannot correct records", id.RoleAgent, selfAgent, ActionManualCorrection, false},
		{"supervisor checks in another agent", id.RoleSupervisor, other, ActionCheckIn, true},
		{"supervisor marks absent", id.RoleSupervisor, other, ActionMarkAbsent, true},
		{"supervisor resolves signals", id.RoleSupervisor, other, ActionResolveSignal, true},
		{"supervisor cannot manually correct", id.RoleSupervisor, other, ActionManualCorrection, false},
		{"admin does everything", id.RoleAdmin, other, ActionManualCorrection, true},
		{"unknown role denied", id.Role("auditor"), other, ActionCheckIn, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.role, self, tt.target, tt.action))
		})
	}
}
