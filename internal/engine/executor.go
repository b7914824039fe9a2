package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Executor
// =============================================================================

// Observer is notified around every step execution. The run history store
// implements it.
type Observer interface {
	StepStarted(ctx context.Context, id StepID)
	StepFinished(ctx context.Context, id StepID, state domain.DeploymentState)
}

// Result is the verdict of one run.
type Result struct {
	Success bool
	State   domain.DeploymentState // state of the last executed step
	Visited []StepID
	Err     error // set when the run stopped for a reason other than a step state
}

// Executor walks a pipeline graph. It does no I/O of its own beyond logging
// the traversal and notifying observers.
type Executor struct {
	logger    *slog.Logger
	observers []Observer
}

// NewExecutor creates an executor.
func NewExecutor(logger *slog.Logger, observers ...Observer) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger:    logger.With("component", "executor"),
		observers: observers,
	}
}

// Run executes the graph from start (the graph's default start when empty)
// against rc:
//   - HasError stops the run with failure, whatever edges remain
//   - Success follows the success edge when one is set
//   - UnSuccessful and Done follow the failure edge when one is set
//   - anything else stops the run with success
//
// Each step runs at most once. The state is reset to Unknown before each
// step so a step that sets nothing ends the run.
func (e *Executor) Run(ctx context.Context, g *Graph, start StepID, rc *Context) Result {
	if start == "" {
		start = g.Start()
	}

	result := Result{State: domain.StateUnknown}
	visited := make(map[StepID]bool)
	current := start

	for {
		node, ok := g.Node(current)
		if !ok {
			return e.fail(rc, result, fmt.Errorf("%w: %s", ErrUnknownStep, current))
		}
		if visited[current] {
			return e.fail(rc, result, fmt.Errorf("%w: step %s visited twice", ErrCycle, current))
		}
		if err := ctx.Err(); err != nil {
			return e.fail(rc, result, fmt.Errorf("%w before step %s: %v", domain.ErrCancelled, current, err))
		}
		visited[current] = true
		result.Visited = append(result.Visited, current)

		state := e.execute(ctx, node, rc)
		result.State = state

		switch {
		case state.IsFatal():
			e.logger.Error("pipeline failed", "step", current, "visited", len(result.Visited))
			return result
		case state == domain.StateSuccess && node.OnSuccess != "":
			current = node.OnSuccess
		case state.EndsBranch() && node.OnFailure != "":
			current = node.OnFailure
		default:
			result.Success = true
			e.logger.Info("pipeline finished", "step", current, "state", state.String(), "visited", len(result.Visited))
			return result
		}
	}
}

func (e *Executor) execute(ctx context.Context, node Node, rc *Context) domain.DeploymentState {
	for _, o := range e.observers {
		o.StepStarted(ctx, node.ID)
	}

	rc.SetState(domain.StateUnknown)
	started := time.Now()
	e.logger.Debug("executing step", "step", node.ID)
	node.Step.Execute(ctx, rc)
	state := rc.State()
	e.logger.Info("step finished", "step", node.ID, "state", state.String(), "duration", time.Since(started))

	for _, o := range e.observers {
		o.StepFinished(ctx, node.ID, state)
	}
	return state
}

func (e *Executor) fail(rc *Context, result Result, err error) Result {
	rc.Fail(err, "pipeline stopped")
	e.logger.Error("pipeline stopped", "error", err)
	result.Success = false
	result.State = domain.StateHasError
	result.Err = err
	return result
}
