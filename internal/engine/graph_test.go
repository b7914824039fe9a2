package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Builder Tests
// =============================================================================

func TestBuilder_DefaultStartIsFirstStep(t *testing.T) {
	tr := &trace{}
	g, err := NewBuilder().
		Add("first", tr.step("first", domain.StateSuccess), OnSuccess("second")).
		Add("second", tr.step("second", domain.StateSuccess)).
		Build()
	require.NoError(t, err)

	assert.Equal(t, StepID("first"), g.Start())
	assert.Equal(t, []StepID{"first", "second"}, g.IDs())

	n, ok := g.Node("first")
	require.True(t, ok)
	assert.Equal(t, StepID("second"), n.OnSuccess)
	assert.Empty(t, n.OnFailure)
}

func TestBuilder_StartAt(t *testing.T) {
	tr := &trace{}
	g, err := NewBuilder().
		Add("a", tr.step("a", domain.StateSuccess)).
		Add("b", tr.step("b", domain.StateSuccess)).
		StartAt("b").
		Build()
	require.NoError(t, err)
	assert.Equal(t, StepID("b"), g.Start())

	_, err = NewBuilder().Add("a", tr.step("a", domain.StateSuccess)).StartAt("zzz").Build()
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestBuilder_Errors(t *testing.T) {
	tr := &trace{}

	_, err := NewBuilder().Build()
	assert.ErrorIs(t, err, ErrEmptyGraph)

	_, err = NewBuilder().
		Add("a", tr.step("a", domain.StateSuccess)).
		Add("a", tr.step("a", domain.StateSuccess)).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateStep)

	_, err = NewBuilder().Add("a", nil).Build()
	assert.ErrorIs(t, err, ErrNilStep)

	_, err = NewBuilder().
		Add("a", tr.step("a", domain.StateSuccess), OnFailure("ghost")).
		Build()
	assert.ErrorIs(t, err, ErrUnknownStep)
	assert.Contains(t, err.Error(), "a -> ghost")
}

func TestBuilder_DetectsCycles(t *testing.T) {
	tr := &trace{}

	_, err := NewBuilder().
		Add("a", tr.step("a", domain.StateSuccess), OnSuccess("b")).
		Add("b", tr.step("b", domain.StateSuccess), OnSuccess("c")).
		Add("c", tr.step("c", domain.StateSuccess), OnFailure("b")).
		Build()
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "b -> c -> b")

	_, err = NewBuilder().
		Add("self", tr.step("self", domain.StateSuccess), OnSuccess("self")).
		Build()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestBuilder_DiamondIsNotACycle(t *testing.T) {
	tr := &trace{}
	_, err := NewBuilder().
		Add("a", tr.step("a", domain.StateSuccess), OnSuccess("b"), OnFailure("c")).
		Add("b", tr.step("b", domain.StateSuccess), OnSuccess("d")).
		Add("c", tr.step("c", domain.StateSuccess), OnSuccess("d")).
		Add("d", tr.step("d", domain.StateSuccess)).
		Build()
	assert.NoError(t, err)
}
