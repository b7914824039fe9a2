package engine

import "context"

// StepID is the stable identity of a step in a pipeline graph.
type StepID string

// Step is one unit of pipeline work. Execute must leave the outcome in the
// run context with SetState; a step that sets nothing ends the run.
type Step interface {
	Execute(ctx context.Context, rc *Context)
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, rc *Context)

func (f StepFunc) Execute(ctx context.Context, rc *Context) {
	f(ctx, rc)
}
