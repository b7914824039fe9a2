// Package exposure plans the firewall and load balancer changes that open
// service ports on a cluster.
// This is part of the Functional Core - all functions are pure with no I/O.
package exposure

import (
	"fmt"
)

// Error describes a planning failure against one remote resource. Err is one
// of the domain error kinds (ErrInvalidConfig, ErrQuotaExceeded).
type Error struct {
	Op       string // planning step (e.g., "PlanFirewall")
	Resource string // rule group or load balancer name
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Resource, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(op, resource, message string, err error) *Error {
	return &Error{Op: op, Resource: resource, Message: message, Err: err}
}
