package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
)

// Selector picks a rule group or load balancer by name.
type Selector func(name string) bool

// NamePrefix selects resources whose name starts with prefix.
func NamePrefix(prefix string) Selector {
	return func(name string) bool {
		return strings.HasPrefix(name, prefix)
	}
}

// Target names the resources a reconciliation operates on.
type Target struct {
	Scope        string
	RuleGroup    Selector
	LoadBalancer Selector
}

// AgentTarget is the target of the public agent pool of a cluster.
func AgentTarget(scope string, orchestrator domain.Orchestrator) Target {
	return Target{
		Scope:        scope,
		RuleGroup:    NamePrefix(orchestrator.AgentRuleGroupPrefix()),
		LoadBalancer: NamePrefix(orchestrator.AgentLoadBalancerPrefix()),
	}
}

// WaitConfig bounds the confirmation polling after each apply.
type WaitConfig struct {
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultWaitConfig polls every 5 seconds for up to 5 minutes.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{Attempts: 60, Interval: 5 * time.Second, Timeout: 5 * time.Minute}
}

// Reconciler opens service ports on the remote platform.
//
// A reconciliation lists the live state, plans every change and only then
// applies. Nothing guards the gap between listing and applying: a concurrent
// writer touching the same rule group or load balancer may be overwritten
// (last writer wins) or may take a priority this run also picked.
type Reconciler struct {
	remote Remote
	wait   WaitConfig
	logger *slog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(remote Remote, wait WaitConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		remote: remote,
		wait:   wait,
		logger: logger.With("component", "network"),
	}
}

// Plan lists the remote state and computes the changes that expose ports.
// It makes no list call when ports is empty. A rule group or load balancer
// the target does not match is logged and left out of the plan.
func (r *Reconciler) Plan(ctx context.Context, target Target, ports []domain.ServicePort) (*exposure.Plan, error) {
	plan := &exposure.Plan{Ports: ports}
	if len(ports) == 0 {
		r.logger.Info("no service ports to expose")
		return plan, nil
	}

	group, found, err := r.findRuleGroup(ctx, target)
	if err != nil {
		return nil, err
	}
	if found {
		fw, err := exposure.PlanFirewall(group, domain.ExternalPorts(ports))
		if err != nil {
			return nil, err
		}
		plan.Firewall = &fw
	} else {
		r.logger.Warn("rule group not found, skipping firewall", "scope", target.Scope)
	}

	lb, found, err := r.findLoadBalancer(ctx, target)
	if err != nil {
		return nil, err
	}
	if found {
		lbp, err := exposure.PlanLoadBalancer(lb, ports)
		if err != nil {
			return nil, err
		}
		if err := r.checkForwarding(lbp); err != nil {
			return nil, err
		}
		plan.LoadBalancer = &lbp
	} else {
		r.logger.Warn("load balancer not found, skipping", "scope", target.Scope)
	}

	return plan, nil
}

// Reconcile plans and applies the changes, then waits until the remote
// reports them. Errors from planning surface before any apply call.
func (r *Reconciler) Reconcile(ctx context.Context, target Target, ports []domain.ServicePort) (*exposure.Plan, error) {
	plan, err := r.Plan(ctx, target, ports)
	if err != nil {
		return nil, err
	}

	if fw := plan.Firewall; fw != nil && fw.Changed() {
		desired := fw.Desired()
		r.logger.Info("applying rule group",
			"group", desired.Name,
			"new_rules", len(fw.NewRules),
			"ports", fw.NewRulePorts(),
		)
		if err := r.remote.ApplyRuleGroup(ctx, desired); err != nil {
			return plan, r.applyError(ctx, "ApplyRuleGroup", desired.Name, err)
		}
		if err := r.confirm(ctx, desired.Name, func(ctx context.Context) (bool, error) {
			return r.ruleGroupConverged(ctx, target.Scope, desired.ID, domain.ExternalPorts(ports))
		}); err != nil {
			return plan, err
		}
	}

	if lbp := plan.LoadBalancer; lbp != nil && lbp.Changed() {
		desired := lbp.Desired()
		r.logger.Info("applying load balancer",
			"load_balancer", desired.Name,
			"new_rules", len(lbp.NewRules),
			"new_probes", len(lbp.NewProbes),
		)
		if err := r.remote.ApplyLoadBalancer(ctx, desired); err != nil {
			return plan, r.applyError(ctx, "ApplyLoadBalancer", desired.Name, err)
		}
		if err := r.confirm(ctx, desired.Name, func(ctx context.Context) (bool, error) {
			return r.loadBalancerConverged(ctx, target.Scope, desired.ID, ports)
		}); err != nil {
			return plan, err
		}
	}

	return plan, nil
}

// checkForwarding rejects new rules whose protocol the remote cannot forward.
func (r *Reconciler) checkForwarding(lbp exposure.LoadBalancerPlan) error {
	fp, ok := r.remote.(ForwardingProtocols)
	if !ok {
		return nil
	}
	for _, rule := range lbp.NewRules {
		if !fp.SupportsForwarding(rule.Protocol) {
			return fmt.Errorf("load balancer %s port %d: %w: %w: %s forwarding",
				lbp.LoadBalancer.Name, rule.FrontendPort, domain.ErrInvalidConfig, ErrUnsupported, rule.Protocol)
		}
	}
	return nil
}

func (r *Reconciler) findRuleGroup(ctx context.Context, target Target) (domain.RuleGroup, bool, error) {
	groups, err := r.remote.ListRuleGroups(ctx, target.Scope)
	if err != nil {
		return domain.RuleGroup{}, false, r.applyError(ctx, "ListRuleGroups", target.Scope, err)
	}
	for _, g := range groups {
		if target.RuleGroup != nil && target.RuleGroup(g.Name) {
			return g, true, nil
		}
	}
	return domain.RuleGroup{}, false, nil
}

func (r *Reconciler) findLoadBalancer(ctx context.Context, target Target) (domain.LoadBalancer, bool, error) {
	lbs, err := r.remote.ListLoadBalancers(ctx, target.Scope)
	if err != nil {
		return domain.LoadBalancer{}, false, r.applyError(ctx, "ListLoadBalancers", target.Scope, err)
	}
	for _, lb := range lbs {
		if target.LoadBalancer != nil && target.LoadBalancer(lb.Name) {
			return lb, true, nil
		}
	}
	return domain.LoadBalancer{}, false, nil
}

// ruleGroupConverged reports whether the listed group covers every port.
func (r *Reconciler) ruleGroupConverged(ctx context.Context, scope, id string, ports []int) (bool, error) {
	groups, err := r.remote.ListRuleGroups(ctx, scope)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.ID != id {
			continue
		}
		fw, err := exposure.PlanFirewall(g, ports)
		if err != nil {
			return false, err
		}
		return !fw.Changed(), nil
	}
	return false, nil
}

// loadBalancerConverged reports whether the listed load balancer forwards every port.
func (r *Reconciler) loadBalancerConverged(ctx context.Context, scope, id string, ports []domain.ServicePort) (bool, error) {
	lbs, err := r.remote.ListLoadBalancers(ctx, scope)
	if err != nil {
		return false, err
	}
	for _, lb := range lbs {
		if lb.ID != id {
			continue
		}
		plan, err := exposure.PlanLoadBalancer(lb, ports)
		if err != nil {
			return false, err
		}
		return len(plan.NewRules) == 0, nil
	}
	return false, nil
}

// minConfirmInterval is the shortest poll interval; time.NewTicker rejects zero.
const minConfirmInterval = time.Millisecond

// confirm polls check until it reports true. It gives up after the
// configured attempts or timeout, whichever comes first.
func (r *Reconciler) confirm(ctx context.Context, resource string, check func(context.Context) (bool, error)) error {
	waitCtx := ctx
	if r.wait.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.wait.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(max(r.wait.Interval, minConfirmInterval))
	defer ticker.Stop()

	attempts := max(r.wait.Attempts, 1)
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-waitCtx.Done():
				return r.waitError(ctx, resource, i)
			case <-ticker.C:
			}
		}
		if waitCtx.Err() != nil {
			return r.waitError(ctx, resource, i)
		}

		done, err := check(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return r.waitError(ctx, resource, i)
			}
			if errors.Is(err, domain.ErrInvalidConfig) {
				return err
			}
			r.logger.Debug("confirmation listing failed", "resource", resource, "attempt", i+1, "error", err)
			continue
		}
		if done {
			r.logger.Info("remote change confirmed", "resource", resource, "attempts", i+1)
			return nil
		}
	}
	return NewRemoteError("Confirm", "", resource,
		fmt.Errorf("change not visible after %d attempts", attempts))
}

func (r *Reconciler) waitError(ctx context.Context, resource string, attempts int) error {
	if ctx.Err() != nil {
		return fmt.Errorf("waiting for %s: %w: %v", resource, domain.ErrCancelled, ctx.Err())
	}
	return NewRemoteError("Confirm", "", resource,
		fmt.Errorf("change not visible within %s (%d attempts)", r.wait.Timeout, attempts))
}

// applyError maps a failed remote call, reporting cancellation distinctly.
func (r *Reconciler) applyError(ctx context.Context, op, resource string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s %s: %w: %v", op, resource, domain.ErrCancelled, ctx.Err())
	}
	return remoteError(op, resource, err)
}
