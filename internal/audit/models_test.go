package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sentra/pkg/domain"
)

// The serialized trail is queried by id, so the uuid fields must encode as
// canonical strings, not raw byte arrays.
func TestEventSerializesIDsAsStrings(t *testing.T) {
	agent := id.NewAgentID()
	event := id.NewEventID()

	payload, err := json.Marshal(Event{
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Action:    ActionManualCorrection,
		ActorID:   id.NewActorID().String(),
		ActorRole: "admin",
		AgentID:   agent,
		EventID:   event,
		Reason:    "wrong status",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, agent.String(), decoded["agent_id"])
	assert.Equal(t, event.String(), decoded["event_id"])

	var back Event
	require.NoError(t, json.Unmarshal(payload, &back))
	assert.Equal(t, agent, back.AgentID)
	assert.Equal(t, event, back.EventID)
}
