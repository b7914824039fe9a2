package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Run Tests
// =============================================================================

func TestNewRun_Valid(t *testing.T) {
	run, err := NewRun("deploy", "rg-prod", "acs-prod", OrchestratorSwarm)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(run.ID, "run_"))
	assert.Len(t, run.ID, len("run_")+8)
	assert.Equal(t, RunStatusPending, run.Status)
	assert.NotZero(t, run.CreatedAt)
}

func TestNewRun_Invalid(t *testing.T) {
	_, err := NewRun("", "rg", "c", OrchestratorSwarm)
	assert.ErrorIs(t, err, ErrRunNameRequired)

	_, err = NewRun("deploy", "rg", "c", Orchestrator("nomad"))
	assert.ErrorIs(t, err, ErrUnsupportedOrchestrator)
}

func TestRun_Transitions(t *testing.T) {
	run, err := NewRun("deploy", "rg", "c", OrchestratorDCOS)
	require.NoError(t, err)

	assert.ErrorIs(t, run.Transition(RunStatusSucceeded), ErrInvalidRunTransition)
	require.NoError(t, run.Transition(RunStatusRunning))
	require.NoError(t, run.Complete(true, StateSuccess, ""))

	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Equal(t, StateSuccess, run.FinalState)
	assert.NotNil(t, run.CompletedAt)
	assert.ErrorIs(t, run.Transition(RunStatusRunning), ErrInvalidRunTransition)
}

func TestRun_StepRecords(t *testing.T) {
	run, err := NewRun("deploy", "rg", "c", OrchestratorDCOS)
	require.NoError(t, err)

	run.StartStep("check-build")
	rec, err := run.FinishStep("check-build", StateSuccess)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Seq)
	assert.Equal(t, StateSuccess, rec.State)
	assert.NotNil(t, rec.FinishedAt)

	run.StartStep("enable-ports")
	assert.Equal(t, "enable-ports", run.CurrentStep)
	assert.Len(t, run.Steps, 2)

	_, err = run.FinishStep("missing", StateDone)
	assert.ErrorIs(t, err, ErrStepNotStarted)
}

func TestRun_CompleteFailed(t *testing.T) {
	run, err := NewRun("deploy", "rg", "c", OrchestratorSwarm)
	require.NoError(t, err)
	require.NoError(t, run.Transition(RunStatusRunning))
	run.StartStep("enable-ports")

	require.NoError(t, run.Complete(false, StateHasError, "quota exceeded"))
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "quota exceeded", run.ErrorMessage)
	assert.Empty(t, run.CurrentStep)
}
