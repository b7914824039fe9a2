// Package engine runs deployment pipelines: a graph of steps connected by
// success and failure edges, executed one at a time against a shared
// run context.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Run Context
// =============================================================================

// Context is the mutable state of one pipeline run. It is created at run
// start, handed to every visited step in turn and discarded afterwards.
// It must not be shared by steps running concurrently.
type Context struct {
	Values *Values

	state  domain.DeploymentState
	sink   Sink
	logger *slog.Logger
}

// NewContext creates a run context with empty values.
func NewContext(sink Sink, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	return &Context{
		Values: NewValues(),
		state:  domain.StateUnknown,
		sink:   sink,
		logger: logger,
	}
}

// State returns the state the current step has set.
func (c *Context) State() domain.DeploymentState {
	return c.state
}

// SetState records the outcome of the current step.
func (c *Context) SetState(state domain.DeploymentState) {
	c.state = state
}

// Logger returns the structured logger of the run.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Statusf writes a status line.
func (c *Context) Statusf(format string, args ...any) {
	c.sink.Status(fmt.Sprintf(format, args...))
}

// Errorf writes an error line without changing the state.
func (c *Context) Errorf(format string, args ...any) {
	c.sink.Error(fmt.Sprintf(format, args...))
}

// Fail writes an error line for err and moves the run to HasError.
func (c *Context) Fail(err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	c.sink.Error(msg)
	c.state = domain.StateHasError
}
