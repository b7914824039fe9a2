package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Deployment State Tests
// =============================================================================

func TestDeploymentState_String(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "has_error", StateHasError.String())
	assert.Equal(t, "unsuccessful", StateUnSuccessful.String())
	assert.Equal(t, "state(42)", DeploymentState(42).String())
}

func TestParseDeploymentState(t *testing.T) {
	for _, s := range []DeploymentState{StateUnknown, StateRunning, StateSuccess, StateUnSuccessful, StateHasError, StateDone} {
		parsed, err := ParseDeploymentState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseDeploymentState("exploded")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestDeploymentState_Classification(t *testing.T) {
	assert.True(t, StateHasError.IsFatal())
	assert.False(t, StateDone.IsFatal())
	assert.False(t, StateUnSuccessful.IsFatal())

	assert.True(t, StateDone.EndsBranch())
	assert.True(t, StateUnSuccessful.EndsBranch())
	assert.False(t, StateSuccess.EndsBranch())
	assert.False(t, StateUnknown.EndsBranch())
}

func TestDeploymentState_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		State DeploymentState `json:"state"`
	}{StateDone})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"done"}`, string(data))

	var decoded struct {
		State DeploymentState `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"state":"has_error"}`), &decoded))
	assert.Equal(t, StateHasError, decoded.State)
}
