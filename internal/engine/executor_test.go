package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

// trace records the order in which steps ran.
type trace struct {
	ran []StepID
}

func (tr *trace) step(id StepID, state domain.DeploymentState) Step {
	return StepFunc(func(ctx context.Context, rc *Context) {
		tr.ran = append(tr.ran, id)
		rc.SetState(state)
	})
}

type recordingObserver struct {
	started  []StepID
	finished map[StepID]domain.DeploymentState
}

func (o *recordingObserver) StepStarted(_ context.Context, id StepID) {
	o.started = append(o.started, id)
}

func (o *recordingObserver) StepFinished(_ context.Context, id StepID, state domain.DeploymentState) {
	if o.finished == nil {
		o.finished = make(map[StepID]domain.DeploymentState)
	}
	o.finished[id] = state
}

func newTestContext() (*Context, *MemorySink) {
	sink := &MemorySink{}
	return NewContext(sink, nil), sink
}

// =============================================================================
// Executor Tests
// =============================================================================

func TestExecutor_FollowsSuccessEdgeNeverFailure(t *testing.T) {
	tr := &trace{}
	g, err := NewBuilder().
		Add("A", tr.step("A", domain.StateSuccess), OnSuccess("B"), OnFailure("C")).
		Add("B", tr.step("B", domain.StateSuccess)).
		Add("C", tr.step("C", domain.StateSuccess)).
		Build()
	require.NoError(t, err)

	rc, _ := newTestContext()
	result := NewExecutor(nil).Run(context.Background(), g, "A", rc)

	assert.True(t, result.Success)
	assert.Equal(t, domain.StateSuccess, result.State)
	assert.Equal(t, []StepID{"A", "B"}, tr.ran)
	assert.Equal(t, []StepID{"A", "B"}, result.Visited)
	assert.NoError(t, result.Err)
}

func TestExecutor_HasErrorStopsImmediately(t *testing.T) {
	tr := &trace{}
	g, err := NewBuilder().
		Add("A", tr.step("A", domain.StateSuccess), OnSuccess("B")).
		Add("B", tr.step("B", domain.StateHasError), OnSuccess("C"), OnFailure("C")).
		Add("C", tr.step("C", domain.StateSuccess)).
		Build()
	require.NoError(t, err)

	rc, _ := newTestContext()
	result := NewExecutor(nil).Run(context.Background(), g, "", rc)

	assert.False(t, result.Success)
	assert.Equal(t, domain.StateHasError, result.State)
	assert.Equal(t, []StepID{"A", "B"}, tr.ran)
}

func TestExecutor_FailureEdgeOnUnsuccessfulAndDone(t *testing.T) {
	for _, state := range []domain.DeploymentState{domain.StateUnSuccessful, domain.StateDone} {
		t.Run(state.String(), func(t *testing.T) {
			tr := &trace{}
			g, err := NewBuilder().
				Add("validate", tr.step("validate", state), OnSuccess("deploy"), OnFailure("provision")).
				Add("provision", tr.step("provision", domain.StateSuccess), OnSuccess("deploy")).
				Add("deploy", tr.step("deploy", domain.StateSuccess)).
				Build()
			require.NoError(t, err)

			rc, _ := newTestContext()
			result := NewExecutor(nil).Run(context.Background(), g, "validate", rc)

			assert.True(t, result.Success)
			assert.Equal(t, []StepID{"validate", "provision", "deploy"}, tr.ran)
		})
	}
}

func TestExecutor_NoMatchingEdgeStopsWithSuccess(t *testing.T) {
	tests := []struct {
		name  string
		state domain.DeploymentState
	}{
		{"done without failure edge", domain.StateDone},
		{"step forgot to set a state", domain.StateUnknown},
		{"still running", domain.StateRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &trace{}
			g, err := NewBuilder().
				Add("A", tr.step("A", tt.state), OnSuccess("B")).
				Add("B", tr.step("B", domain.StateSuccess)).
				Build()
			require.NoError(t, err)

			rc, _ := newTestContext()
			result := NewExecutor(nil).Run(context.Background(), g, "A", rc)

			assert.True(t, result.Success)
			assert.Equal(t, tt.state, result.State)
			assert.Equal(t, []StepID{"A"}, tr.ran)
		})
	}
}

func TestExecutor_ResetsStateBeforeEachStep(t *testing.T) {
	var seen []domain.DeploymentState
	observe := func(next domain.DeploymentState) Step {
		return StepFunc(func(ctx context.Context, rc *Context) {
			seen = append(seen, rc.State())
			rc.SetState(next)
		})
	}
	g, err := NewBuilder().
		Add("A", observe(domain.StateSuccess), OnSuccess("B")).
		Add("B", observe(domain.StateDone)).
		Build()
	require.NoError(t, err)

	rc, _ := newTestContext()
	NewExecutor(nil).Run(context.Background(), g, "A", rc)

	assert.Equal(t, []domain.DeploymentState{domain.StateUnknown, domain.StateUnknown}, seen)
}

func TestExecutor_StepsShareValues(t *testing.T) {
	host := NewKey[string]("master_host")
	g, err := NewBuilder().
		Add("produce", StepFunc(func(ctx context.Context, rc *Context) {
			Set(rc.Values, host, "master.example.com")
			rc.SetState(domain.StateSuccess)
		}), OnSuccess("consume")).
		Add("consume", StepFunc(func(ctx context.Context, rc *Context) {
			if v, ok := Get(rc.Values, host); ok && v == "master.example.com" {
				rc.SetState(domain.StateSuccess)
				return
			}
			rc.Fail(nil, "master host missing")
		})).
		Build()
	require.NoError(t, err)

	rc, _ := newTestContext()
	result := NewExecutor(nil).Run(context.Background(), g, "", rc)
	assert.True(t, result.Success)
}

func TestExecutor_CancelledContext(t *testing.T) {
	tr := &trace{}
	ctx, cancel := context.WithCancel(context.Background())

	g, err := NewBuilder().
		Add("A", StepFunc(func(_ context.Context, rc *Context) {
			tr.ran = append(tr.ran, "A")
			cancel()
			rc.SetState(domain.StateSuccess)
		}), OnSuccess("B")).
		Add("B", tr.step("B", domain.StateSuccess)).
		Build()
	require.NoError(t, err)

	rc, sink := newTestContext()
	result := NewExecutor(nil).Run(ctx, g, "A", rc)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, domain.ErrCancelled)
	assert.Equal(t, domain.StateHasError, rc.State())
	assert.Equal(t, []StepID{"A"}, tr.ran)
	assert.NotEmpty(t, sink.Errors())
}

func TestExecutor_UnknownStartStep(t *testing.T) {
	tr := &trace{}
	g, err := NewBuilder().Add("A", tr.step("A", domain.StateSuccess)).Build()
	require.NoError(t, err)

	rc, _ := newTestContext()
	result := NewExecutor(nil).Run(context.Background(), g, "missing", rc)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrUnknownStep)
	assert.Empty(t, tr.ran)
}

func TestExecutor_NotifiesObservers(t *testing.T) {
	tr := &trace{}
	g, err := NewBuilder().
		Add("A", tr.step("A", domain.StateSuccess), OnSuccess("B")).
		Add("B", tr.step("B", domain.StateDone)).
		Build()
	require.NoError(t, err)

	obs := &recordingObserver{}
	rc, _ := newTestContext()
	NewExecutor(nil, obs).Run(context.Background(), g, "A", rc)

	assert.Equal(t, []StepID{"A", "B"}, obs.started)
	assert.Equal(t, domain.StateSuccess, obs.finished["A"])
	assert.Equal(t, domain.StateDone, obs.finished["B"])
}
