package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgentID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAgentID("")
		require.Error(t, err)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAgentID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("round-trips a valid uuid", func(t *testing.T) {
		raw := uuid.NewString()
		agentID, err := ParseAgentID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, agentID.String())
	})

	t.Run("accepts uppercase", func(t *testing.T) {
		raw := strings.ToUpper(uuid.NewString())
		agentID, err := ParseAgentID(raw)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(raw), agentID.String())
	})
}

func TestIsNil(t *testing.T) {
	assert.True(t, AgentID{}.IsNil())
	assert.True(t, EventID{}.IsNil())
	assert.False(t, NewAgentID().IsNil())
	assert.False(t, NewEventID().IsNil())
}

func TestAgentActorConversion(t *testing.T) {
	// Supervisors act on behalf of agents, so the two id spaces must
	// convert without losing the underlying value.
	actor := NewActorID()
	agent := AgentID(actor)
	assert.Equal(t, actor.String(), agent.String())
}

func TestNewIDsAreDistinct(t *testing.T) {
	a, b := NewAttendanceID(), NewAttendanceID()
	assert.NotEqual(t, a, b)
}

func TestIDJSONEncoding(t *testing.T) {
	agent := NewAgentID()

	raw, err := json.Marshal(agent)
	require.NoError(t, err)
	assert.Equal(t, `"`+agent.String()+`"`, string(raw))

	var decoded AgentID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, agent, decoded)

	var bad EventID
	assert.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &bad))
}
