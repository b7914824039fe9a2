// Package network reconciles the service ports of a deployment against the
// firewall rule groups and load balancers of the remote platform.
// This is part of the Imperative Shell - handles I/O with the remote control plane.
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// Remote is the query/mutate surface of the remote control plane.
//
// List calls return every resource inside scope (a resource group, tag or
// label selector, depending on the platform). Apply calls receive the full
// desired resource; implementations add whatever the live resource lacks and
// leave existing rules untouched.
type Remote interface {
	ListRuleGroups(ctx context.Context, scope string) ([]domain.RuleGroup, error)
	ListLoadBalancers(ctx context.Context, scope string) ([]domain.LoadBalancer, error)
	ApplyRuleGroup(ctx context.Context, group domain.RuleGroup) error
	ApplyLoadBalancer(ctx context.Context, lb domain.LoadBalancer) error
}

// ErrUnsupported is returned by remotes that cannot manage a resource kind.
var ErrUnsupported = errors.New("not supported by provider")

// ForwardingProtocols is implemented by remotes whose load balancers forward
// only some protocols. Plan rejects a forwarding rule the remote cannot
// carry, so nothing is applied.
type ForwardingProtocols interface {
	SupportsForwarding(protocol domain.Protocol) bool
}

// RemoteError describes a failed call against the remote control plane.
// It matches domain.ErrRemoteState as well as the underlying cause.
type RemoteError struct {
	Op       string // e.g. "ListRuleGroups"
	Provider string
	Resource string
	Err      error
}

func (e *RemoteError) Error() string {
	prefix := e.Op
	if e.Provider != "" {
		prefix = e.Provider + " " + prefix
	}
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %v", prefix, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	return []error{domain.ErrRemoteState, e.Err}
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(op, provider, resource string, err error) *RemoteError {
	return &RemoteError{Op: op, Provider: provider, Resource: resource, Err: err}
}

// remoteError wraps err unless a remote already described it.
func remoteError(op, resource string, err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return NewRemoteError(op, "", resource, err)
}
